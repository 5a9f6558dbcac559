package dispatch

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/route"
	"github.com/helmgate/helmgate/internal/webhook"
)

// streamBufferSize bounds the relay channel. A slow client applies
// backpressure to the upstream read instead of growing memory.
const streamBufferSize = 16

// scannerBufferSize accommodates large SSE payloads.
const scannerBufferSize = 1024 * 1024

// Stream runs the streaming candidate loop. Candidates may be advanced until
// the first content event is obtained from an upstream; after that the
// candidate is committed and any later failure terminates the stream with an
// in-band error event instead of falling back.
func (d *Dispatcher) Stream(ctx context.Context, req *domain.Request, cands route.Spec) (<-chan domain.StreamEvent, error) {
	var lastErr error
	for i, cand := range cands {
		if i > 0 {
			d.metrics.RecordFallback()
			d.notify(ctx, webhook.Event{
				Type: webhook.EventFallbackUsed,
				Data: map[string]any{"provider": cand.Provider, "model": cand.Model},
			})
		}

		out, err := d.streamOne(ctx, req, cand)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			return nil, err
		}
		d.logger.Warn("stream candidate failed, advancing chain",
			"provider", cand.Provider,
			"model", cand.Model,
			"error", err,
		)
	}
	return nil, domain.ExhaustedError(lastErr)
}

// streamOne attempts one candidate. It reads up to the first content event
// synchronously so a dead upstream can still fall back; success hands the
// open stream to a relay goroutine.
func (d *Dispatcher) streamOne(parent context.Context, req *domain.Request, cand route.Candidate) (<-chan domain.StreamEvent, error) {
	pr, err := d.prepare(req, cand, true)
	if err != nil {
		return nil, err
	}

	// Each candidate gets a fresh deadline so a hung upstream cannot burn
	// the budget of the rest of the chain. The relay inherits it for the
	// life of the committed stream.
	ctx, cancel := context.WithTimeout(parent, d.timeout)

	d.metrics.RecordAttempt(pr.provider.Name, pr.model)

	httpResp, err := d.send(ctx, pr, true)
	if err != nil {
		cancel()
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, err
	}

	body, err := decompressReader(httpResp)
	if err != nil {
		httpResp.Body.Close()
		cancel()
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, err)
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)

	// Commit point: the first decoded event. Anything before it is a
	// candidate failure and the chain may advance.
	first, err := d.nextEvent(pr, scanner)
	if err != nil {
		body.Close()
		cancel()
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, err)
	}
	if first == nil {
		body.Close()
		cancel()
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, io.ErrUnexpectedEOF)
	}
	if first.Error != nil {
		body.Close()
		cancel()
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return nil, domain.TransportError(pr.provider.Name, first.Error)
	}

	out := make(chan domain.StreamEvent, streamBufferSize)
	go d.relay(ctx, cancel, pr, body, scanner, *first, out)
	return out, nil
}

// nextEvent scans to the next decodable event, skipping housekeeping frames.
// A nil event with nil error means the stream ended.
func (d *Dispatcher) nextEvent(pr *prepared, scanner *bufio.Scanner) (*domain.StreamEvent, error) {
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if strings.TrimSpace(data) == "[DONE]" {
			return nil, nil
		}
		ev, err := pr.codec.DecodeStreamChunk([]byte(data))
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		return ev, nil
	}
	return nil, scanner.Err()
}

// relay forwards events in receipt order until the upstream ends. Failures
// here happen after the commit point, so they surface as in-band error events.
func (d *Dispatcher) relay(ctx context.Context, cancel context.CancelFunc, pr *prepared, body io.ReadCloser, scanner *bufio.Scanner, first domain.StreamEvent, out chan<- domain.StreamEvent) {
	defer cancel()
	defer body.Close()
	defer close(out)

	start := time.Now()

	if !d.forward(ctx, out, first) {
		d.metrics.RecordFailure(pr.provider.Name, pr.model)
		return
	}

	for {
		ev, err := d.nextEvent(pr, scanner)
		if err != nil {
			d.metrics.RecordFailure(pr.provider.Name, pr.model)
			d.forward(ctx, out, domain.StreamEvent{Error: domain.PartialStreamError(err)})
			return
		}
		if ev == nil {
			break
		}
		if ev.Error != nil {
			d.metrics.RecordFailure(pr.provider.Name, pr.model)
			d.forward(ctx, out, domain.StreamEvent{Error: domain.PartialStreamError(ev.Error)})
			return
		}
		if !d.forward(ctx, out, *ev) {
			d.metrics.RecordFailure(pr.provider.Name, pr.model)
			return
		}
	}

	d.metrics.RecordSuccess(pr.provider.Name, pr.model)
	d.logger.Info("upstream stream completed",
		"provider", pr.provider.Name,
		"model", pr.model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// forward sends one event, honoring cancellation. The bounded channel makes
// a slow consumer throttle the upstream read.
func (d *Dispatcher) forward(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
