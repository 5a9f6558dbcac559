package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/domain"
	"github.com/helmgate/helmgate/internal/metrics"
	"github.com/helmgate/helmgate/internal/route"
	"github.com/helmgate/helmgate/internal/transform"
	"github.com/helmgate/helmgate/internal/translate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(providers ...config.ProviderConfig) *config.Config {
	return &config.Config{
		Providers: providers,
		Router: config.RouterConfig{
			Strategy: translate.StrategyError,
			Timeout:  10 * time.Second,
		},
	}
}

func openaiProvider(name, baseURL string, models ...string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:       name,
		APIBaseURL: baseURL,
		APIKey:     "test-key",
		Framing:    config.FramingOpenAI,
		Models:     models,
	}
}

func testDispatcher(cfg *config.Config) (*Dispatcher, *metrics.Metrics) {
	m := metrics.New()
	d := New(cfg, translate.New(&cfg.Router), transform.NewRegistry(), m, testLogger())
	return d, m
}

// completionBody is a minimal valid OpenAI response.
func completionBody(text string) string {
	return `{"id":"resp-1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"` + text + `"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`
}

func userRequest(text string) *domain.Request {
	return &domain.Request{
		Model: "model-a",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: domain.NewTextContent(text)},
		},
	}
}

func TestCompleteFallback(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream is down","type":"server_error"}}`))
	}))
	defer failing.Close()

	var sawStream atomic.Bool
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if v, ok := body["stream"].(bool); ok && v {
			sawStream.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("hello from backup")))
	}))
	defer healthy.Close()

	cfg := testConfig(
		openaiProvider("primary", failing.URL, "model-a"),
		openaiProvider("backup", healthy.URL, "model-b"),
	)
	d, m := testDispatcher(cfg)

	cands := route.Spec{
		{Provider: "primary", Model: "model-a"},
		{Provider: "backup", Model: "model-b"},
	}

	resp, err := d.Complete(context.Background(), userRequest("hi"), cands)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "hello from backup" {
		t.Errorf("text = %q", resp.Text())
	}
	if resp.Provider != "backup" {
		t.Errorf("provider = %q, want backup", resp.Provider)
	}
	if sawStream.Load() {
		t.Error("non-streaming call sent stream=true upstream")
	}

	snap := m.Snapshot()
	if snap.Attempts != 2 || snap.Failures != 1 || snap.Successes != 1 || snap.Fallbacks != 1 {
		t.Errorf("counters = %+v", snap)
	}
	if c := snap.Candidates["primary/model-a"]; c.Failures != 1 {
		t.Errorf("primary counters = %+v", c)
	}
	if c := snap.Candidates["backup/model-b"]; c.Successes != 1 {
		t.Errorf("backup counters = %+v", c)
	}
}

func TestCompleteTimeoutFallsBack(t *testing.T) {
	// The first upstream never answers. Its deadline must not bleed into
	// the backup candidate's attempt.
	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close() deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer hung.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("in time")))
	}))
	defer healthy.Close()

	cfg := testConfig(
		openaiProvider("hung", hung.URL, "model-a"),
		openaiProvider("backup", healthy.URL, "model-a"),
	)
	cfg.Router.Timeout = 200 * time.Millisecond
	d, m := testDispatcher(cfg)

	resp, err := d.Complete(context.Background(), userRequest("hi"), route.Spec{
		{Provider: "hung", Model: "model-a"},
		{Provider: "backup", Model: "model-a"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "in time" {
		t.Errorf("text = %q", resp.Text())
	}
	if resp.Provider != "backup" {
		t.Errorf("provider = %q, want backup", resp.Provider)
	}
	if snap := m.Snapshot(); snap.Failures != 1 || snap.Successes != 1 || snap.Fallbacks != 1 {
		t.Errorf("counters = %+v", snap)
	}
}

func TestCompleteExhausted(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	cfg := testConfig(openaiProvider("only", failing.URL, "model-a"))
	d, _ := testDispatcher(cfg)

	_, err := d.Complete(context.Background(), userRequest("hi"), route.Spec{
		{Provider: "only", Model: "model-a"},
		{Provider: "only", Model: "model-a"},
	})
	if err == nil {
		t.Fatal("expected error after exhausted chain")
	}
	var ge *domain.Error
	if !errors.As(err, &ge) || ge.Kind != domain.KindUpstreamExhausted {
		t.Errorf("error = %v, want upstream_exhausted", err)
	}
}

func TestCompleteSkipsUntranslatableCandidate(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("ok")))
	}))
	defer healthy.Close()

	cfg := testConfig(
		openaiProvider("strict", healthy.URL, "other-model"),
		openaiProvider("loose", healthy.URL, "model-a"),
	)
	d, m := testDispatcher(cfg)

	resp, err := d.Complete(context.Background(), userRequest("hi"), route.Spec{
		{Provider: "strict", Model: "model-a"},
		{Provider: "loose", Model: "model-a"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Provider != "loose" {
		t.Errorf("provider = %q", resp.Provider)
	}
	// Translation failure happens before any wire attempt.
	if snap := m.Snapshot(); snap.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", snap.Attempts)
	}
}

func TestCompleteTransformErrorIsTerminal(t *testing.T) {
	var called atomic.Int64
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.Write([]byte(completionBody("ok")))
	}))
	defer healthy.Close()

	reg := transform.NewRegistry()
	reg.Register(failingTransformer{})

	cfg := testConfig(
		openaiProvider("broken", healthy.URL, "model-a"),
		openaiProvider("backup", healthy.URL, "model-a"),
	)
	cfg.Providers[0].Transformers = []string{"boom"}

	m := metrics.New()
	d := New(cfg, translate.New(&cfg.Router), reg, m, testLogger())

	_, err := d.Complete(context.Background(), userRequest("hi"), route.Spec{
		{Provider: "broken", Model: "model-a"},
		{Provider: "backup", Model: "model-a"},
	})
	if err == nil {
		t.Fatal("expected transform error")
	}
	if domain.Retryable(err) {
		t.Error("transform error should not be retryable")
	}
	if called.Load() != 0 {
		t.Error("terminal transform failure still reached an upstream")
	}
}

type failingTransformer struct{ transform.Identity }

func (failingTransformer) Name() string { return "boom" }
func (failingTransformer) TransformRequest(*domain.Request) error {
	return errors.New("cannot adapt request")
}

func TestUpstreamErrorMessage(t *testing.T) {
	t.Run("openai dialect", func(t *testing.T) {
		got := upstreamErrorMessage([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
		if got != "rate limited" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("anthropic dialect", func(t *testing.T) {
		got := upstreamErrorMessage([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
		if got != "overloaded" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("unstructured body passes through", func(t *testing.T) {
		got := upstreamErrorMessage([]byte("bad gateway"))
		if got != "bad gateway" {
			t.Errorf("got %q", got)
		}
	})
}
