// Package dispatch owns the upstream candidate loop: translate, transform,
// encode for the provider's framing, call, and decode, advancing through the
// fallback chain on retryable failures.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/helmgate/helmgate/internal/codec"
	anthropiccodec "github.com/helmgate/helmgate/internal/codec/anthropic"
	openaicodec "github.com/helmgate/helmgate/internal/codec/openai"
	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/metrics"
	"github.com/helmgate/helmgate/internal/route"
	"github.com/helmgate/helmgate/internal/transform"
	"github.com/helmgate/helmgate/internal/translate"
	"github.com/helmgate/helmgate/internal/webhook"
)

const anthropicVersion = "2023-06-01"

// Dispatcher drives upstream calls for a routing decision.
type Dispatcher struct {
	cfg        *config.Config
	translator *translate.Translator
	registry   *transform.Registry
	client     *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	notifier   *webhook.Notifier

	openai    codec.Codec
	anthropic codec.Codec
}

// Option adjusts dispatcher construction.
type Option func(*Dispatcher)

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithNotifier attaches a webhook notifier.
func WithNotifier(n *webhook.Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// New builds a dispatcher.
func New(cfg *config.Config, translator *translate.Translator, registry *transform.Registry, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:        cfg,
		translator: translator,
		registry:   registry,
		client:     &http.Client{},
		timeout:    cfg.Router.Timeout,
		logger:     logger,
		metrics:    m,
		openai:     openaicodec.New(),
		anthropic:  anthropiccodec.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) codecFor(framing string) codec.Codec {
	if framing == config.FramingAnthropic {
		return d.anthropic
	}
	return d.openai
}

// prepared is one candidate readied for the wire.
type prepared struct {
	provider *config.ProviderConfig
	model    string
	chain    transform.Chain
	codec    codec.Codec
	body     []byte
}

// prepare translates, transforms, and encodes the request for one candidate.
func (d *Dispatcher) prepare(req *domain.Request, cand route.Candidate, stream bool) (*prepared, error) {
	p, ok := d.cfg.Provider(cand.Provider)
	if !ok {
		return nil, domain.UnsupportedModelError(cand.Model, cand.Provider, "provider not configured")
	}

	model, err := d.translator.Resolve(cand.Model, p)
	if err != nil {
		return nil, err
	}

	clone := req.Clone()
	clone.Model = model
	clone.Stream = stream

	chain := d.registry.BuildChain(p.Transformers, d.logger)
	if err := chain.TransformRequest(clone); err != nil {
		return nil, fmt.Errorf("transform request for %s: %w", p.Name, err)
	}

	c := d.codecFor(p.Framing)
	body, err := c.EncodeRequest(clone)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", p.Name, err)
	}
	// Transformers may rewrite arbitrary fields; the stream flag is the
	// dispatcher's call, so pin it after encoding.
	if body, err = sjson.SetBytes(body, "stream", stream); err != nil {
		return nil, fmt.Errorf("set stream flag: %w", err)
	}

	return &prepared{provider: p, model: clone.Model, chain: chain, codec: c, body: body}, nil
}

// send performs the upstream HTTP call. The caller owns the response body.
func (d *Dispatcher) send(ctx context.Context, pr *prepared, stream bool) (*http.Response, error) {
	url := pr.provider.APIBaseURL + endpointPath(pr.provider.Framing)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pr.body))
	if err != nil {
		return nil, domain.TransportError(pr.provider.Name, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip, br")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	switch pr.provider.Framing {
	case config.FramingAnthropic:
		httpReq.Header.Set("x-api-key", pr.provider.APIKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
	default:
		httpReq.Header.Set("Authorization", "Bearer "+pr.provider.APIKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, domain.TransportError(pr.provider.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := readUpstreamBody(resp, 8192)
		return nil, domain.UpstreamStatusError(pr.provider.Name, resp.StatusCode, upstreamErrorMessage(body))
	}
	return resp, nil
}

func endpointPath(framing string) string {
	if framing == config.FramingAnthropic {
		return "/v1/messages"
	}
	return "/chat/completions"
}

// upstreamErrorMessage pulls the human-readable message out of either error
// dialect, falling back to the raw body.
func upstreamErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return string(body)
}

// Complete runs the non-streaming candidate loop. Retryable failures advance
// the chain; the first success wins. A terminal failure or an exhausted chain
// returns an error.
func (d *Dispatcher) Complete(ctx context.Context, req *domain.Request, cands route.Spec) (*domain.Response, error) {
	var lastErr error
	for i, cand := range cands {
		if i > 0 {
			d.metrics.RecordFallback()
			d.notify(ctx, webhook.Event{
				Type: webhook.EventFallbackUsed,
				Data: map[string]any{"provider": cand.Provider, "model": cand.Model},
			})
		}

		resp, err := d.completeOne(ctx, req, cand)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			return nil, err
		}
		d.logger.Warn("candidate failed, advancing chain",
			"provider", cand.Provider,
			"model", cand.Model,
			"error", err,
		)
	}
	return nil, domain.ExhaustedError(lastErr)
}

func (d *Dispatcher) completeOne(ctx context.Context, req *domain.Request, cand route.Candidate) (*domain.Response, error) {
	pr, err := d.prepare(req, cand, false)
	if err != nil {
		return nil, err
	}

	// Each candidate gets a fresh deadline so a hung upstream cannot burn
	// the budget of the rest of the chain.
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.metrics.RecordAttempt(pr.provider.Name, pr.model)
	start := time.Now()

	httpResp, err := d.send(ctx, pr, false)
	if err != nil {
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := readUpstreamBody(httpResp, 0)
	if err != nil {
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, err)
	}

	resp, err := pr.codec.DecodeResponse(body)
	if err != nil {
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, err)
	}

	if err := pr.chain.TransformResponse(resp); err != nil {
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, fmt.Errorf("transform response from %s: %w", pr.provider.Name, err)
	}

	resp.Provider = pr.provider.Name
	d.metrics.RecordSuccess(pr.provider.Name, pr.model)
	d.logger.Info("upstream call completed",
		"provider", pr.provider.Name,
		"model", pr.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func (d *Dispatcher) notify(ctx context.Context, ev webhook.Event) {
	if d.notifier == nil {
		return
	}
	// Deliveries ride their own context so a finished request does not
	// cancel them mid-flight.
	go d.notifier.Notify(context.WithoutCancel(ctx), ev)
}
