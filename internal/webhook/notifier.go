package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/helmgate/helmgate/internal/config"
)

// SignatureHeader carries the payload signature on delivery requests.
const SignatureHeader = "X-Helmgate-Signature"

// Event is one lifecycle notification.
type Event struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Event types emitted by the gateway.
const (
	EventRequestCompleted = "request.completed"
	EventRequestFailed    = "request.failed"
	EventFallbackUsed     = "fallback.used"
)

// Notifier delivers signed events to a configured endpoint. Delivery is best
// effort: failures are logged, never surfaced to the request path.
type Notifier struct {
	url     string
	secret  []byte
	retries int
	client  *http.Client
	logger  *slog.Logger
}

// NewNotifier builds a notifier from configuration. A nil return means
// webhooks are not configured and Notify becomes a no-op.
func NewNotifier(cfg config.WebhookConfig, logger *slog.Logger) *Notifier {
	if cfg.URL == "" {
		return nil
	}
	return &Notifier{
		url:     cfg.URL,
		secret:  []byte(cfg.Secret),
		retries: cfg.Retries,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Notify signs and posts the event. Safe to call on a nil notifier.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if n == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("webhook marshal failed", "error", err, "event", ev.Type)
		return
	}
	signature := Sign(n.secret, payload)

	var lastErr error
	for attempt := 0; attempt <= n.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		if lastErr = n.deliver(ctx, payload, signature); lastErr == nil {
			return
		}
	}
	n.logger.Warn("webhook delivery failed",
		"event", ev.Type,
		"request_id", ev.RequestID,
		"error", lastErr,
	)
}

func (n *Notifier) deliver(ctx context.Context, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
