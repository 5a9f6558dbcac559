package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helmgate/helmgate/internal/analyze"
	"github.com/helmgate/helmgate/internal/codec"
	anthropiccodec "github.com/helmgate/helmgate/internal/codec/anthropic"
	openaicodec "github.com/helmgate/helmgate/internal/codec/openai"
	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/detect"
	"github.com/helmgate/helmgate/internal/dispatch"
	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/ledger"
	"github.com/helmgate/helmgate/internal/metrics"
	"github.com/helmgate/helmgate/internal/route"
	"github.com/helmgate/helmgate/internal/webhook"
)

// maxRequestBody caps inbound request bodies at 32 MiB.
const maxRequestBody = 32 << 20

// Gateway orchestrates the request path: detect the client, decode into the
// canonical model, route, dispatch, and encode back in the caller's framing.
type Gateway struct {
	cfg        *config.Config
	engine     *route.Engine
	analyzer   *analyze.Analyzer
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	ledger     *ledger.Ledger
	notifier   *webhook.Notifier
	logger     *slog.Logger

	openai    codec.Codec
	anthropic codec.Codec
}

// NewGateway wires the request path components together.
func NewGateway(cfg *config.Config, engine *route.Engine, analyzer *analyze.Analyzer, dispatcher *dispatch.Dispatcher, m *metrics.Metrics, l *ledger.Ledger, notifier *webhook.Notifier, logger *slog.Logger) *Gateway {
	return &Gateway{
		cfg:        cfg,
		engine:     engine,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		metrics:    m,
		ledger:     l,
		notifier:   notifier,
		logger:     logger,
		openai:     openaicodec.New(),
		anthropic:  anthropiccodec.New(),
	}
}

func (g *Gateway) codecFor(framing detect.Framing) codec.Codec {
	if framing == detect.FramingAnthropic {
		return g.anthropic
	}
	return g.openai
}

// HandleCompletion serves every chat endpoint regardless of framing; the
// detector decides which codec interprets the bytes.
func (g *Gateway) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	client := detect.Classify(r.Header, r.URL.Path)
	c := g.codecFor(client.Framing)
	AddLogField(ctx, "client", client.Name)
	AddLogField(ctx, "framing", string(client.Framing))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		g.writeError(w, ctx, c, domain.BadRequestError(err))
		return
	}

	req, err := c.DecodeRequest(body)
	if err != nil {
		g.writeError(w, ctx, c, domain.BadRequestError(err))
		return
	}
	if req.Model == "" {
		g.writeError(w, ctx, c, &domain.Error{
			Kind:    domain.KindBadRequest,
			Message: "model is required",
		})
		return
	}

	decision, forced := route.Override(req.Model, g.cfg)
	if !forced {
		decision = g.engine.Decide(g.analyzer.Analyze(req))
	}
	AddLogField(ctx, "scenario", string(decision.Scenario))
	AddLogField(ctx, "route", decision.Candidates.String())

	if req.Stream {
		g.streamCompletion(w, r, c, client, req, decision, start)
		return
	}

	resp, err := g.dispatcher.Complete(ctx, req, decision.Candidates)
	if err != nil {
		g.recordOutcome(ctx, client, decision, req.Model, nil, ledger.OutcomeFailure, start)
		g.writeError(w, ctx, c, err)
		return
	}

	out, err := c.EncodeResponse(resp)
	if err != nil {
		g.writeError(w, ctx, c, err)
		return
	}

	g.recordOutcome(ctx, client, decision, resp.Model, resp, ledger.OutcomeSuccess, start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// streamCompletion relays upstream events to the caller as SSE in the
// caller's framing, flushing after every frame.
func (g *Gateway) streamCompletion(w http.ResponseWriter, r *http.Request, c codec.Codec, client detect.ClientType, req *domain.Request, decision route.Decision, start time.Time) {
	ctx := r.Context()

	events, err := g.dispatcher.Stream(ctx, req, decision.Candidates)
	if err != nil {
		g.recordOutcome(ctx, client, decision, req.Model, nil, ledger.OutcomeFailure, start)
		g.writeError(w, ctx, c, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.writeError(w, ctx, c, errors.New("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	meta := &codec.StreamMetadata{
		ID:      streamID(client.Framing),
		Model:   req.Model,
		Created: time.Now().Unix(),
	}

	if preamble := c.EncodeStreamStart(meta); preamble != nil {
		w.Write(preamble)
		flusher.Flush()
	}

	var usage domain.Usage
	outcome := ledger.OutcomeSuccess

	for ev := range events {
		if ev.Error != nil {
			AddError(ctx, ev.Error)
			w.Write(c.EncodeStreamError(ev.Error.Error()))
			flusher.Flush()
			outcome = ledger.OutcomePartial
			break
		}
		if ev.Usage != nil {
			usage = *ev.Usage
		}
		frame, err := c.EncodeStreamChunk(&ev, meta)
		if err != nil {
			AddError(ctx, err)
			w.Write(c.EncodeStreamError(err.Error()))
			flusher.Flush()
			outcome = ledger.OutcomePartial
			break
		}
		if len(frame) > 0 {
			w.Write(frame)
			flusher.Flush()
		}
	}

	w.Write(c.EncodeStreamEnd(meta))
	flusher.Flush()

	g.recordOutcome(ctx, client, decision, req.Model,
		&domain.Response{Usage: usage}, outcome, start)
}

// streamID synthesizes a response identifier in the caller's dialect.
func streamID(framing detect.Framing) string {
	if framing == detect.FramingAnthropic {
		return "msg_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return "chatcmpl-" + uuid.New().String()
}

// recordOutcome writes the ledger entry and fires the lifecycle webhook.
func (g *Gateway) recordOutcome(ctx context.Context, client detect.ClientType, decision route.Decision, model string, resp *domain.Response, outcome string, start time.Time) {
	entry := ledger.Entry{
		RequestID: GetRequestID(ctx),
		Client:    client.Name,
		Scenario:  string(decision.Scenario),
		Model:     model,
		Outcome:   outcome,
		Duration:  time.Since(start),
	}
	if resp != nil {
		entry.Provider = resp.Provider
		entry.InputTokens = resp.Usage.InputTokens
		entry.OutputTokens = resp.Usage.OutputTokens
	}
	g.ledger.Record(context.WithoutCancel(ctx), entry)

	evType := webhook.EventRequestCompleted
	if outcome != ledger.OutcomeSuccess {
		evType = webhook.EventRequestFailed
	}
	go g.notifier.Notify(context.WithoutCancel(ctx), webhook.Event{
		Type:      evType,
		RequestID: entry.RequestID,
		Data: map[string]any{
			"scenario":      entry.Scenario,
			"model":         entry.Model,
			"provider":      entry.Provider,
			"input_tokens":  entry.InputTokens,
			"output_tokens": entry.OutputTokens,
			"outcome":       outcome,
		},
	})
}

// writeError renders err in the caller's dialect with the mapped status.
func (g *Gateway) writeError(w http.ResponseWriter, ctx context.Context, c codec.Codec, err error) {
	AddError(ctx, err)

	status := http.StatusInternalServerError
	message := err.Error()
	var ge *domain.Error
	if errors.As(err, &ge) {
		status = ge.HTTPStatusCode()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(c.EncodeError(status, message))
}

// HandleModels lists every model declared across providers, OpenAI list
// shape.
func (g *Gateway) HandleModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	out := struct {
		Object string  `json:"object"`
		Data   []model `json:"data"`
	}{Object: "list", Data: []model{}}

	for _, p := range g.cfg.Providers {
		for _, m := range p.Models {
			out.Data = append(out.Data, model{ID: m, Object: "model", OwnedBy: p.Name})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// HandleMetrics exposes the dispatch counter snapshot.
func (g *Gateway) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.metrics.Snapshot())
}

// HandleHealth is the liveness probe.
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
