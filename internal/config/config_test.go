package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9090
providers:
  - name: openrouter
    api_base_url: https://openrouter.ai/api/v1
    api_key: ${TEST_OPENROUTER_KEY}
    namespace: anthropic
    models:
      - anthropic/claude-3-5-sonnet
    transformers:
      - model-namespace
  - name: local
    api_base_url: http://localhost:11434/v1
    framing: anthropic
router:
  default: openrouter,anthropic/claude-3-5-sonnet
  background: local,small-model
  long_context_threshold: 50000
`)
		t.Setenv("TEST_OPENROUTER_KEY", "sk-or-secret")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if cfg.Server.Port != 9090 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
		if len(cfg.Providers) != 2 {
			t.Fatalf("providers = %d", len(cfg.Providers))
		}
		if cfg.Providers[0].APIKey != "sk-or-secret" {
			t.Errorf("env substitution failed: %q", cfg.Providers[0].APIKey)
		}
		if cfg.Providers[0].Framing != FramingOpenAI {
			t.Errorf("default framing = %q", cfg.Providers[0].Framing)
		}
		if cfg.Providers[1].Framing != FramingAnthropic {
			t.Errorf("explicit framing = %q", cfg.Providers[1].Framing)
		}
		if cfg.Router.LongContextThreshold != 50000 {
			t.Errorf("long context threshold = %d", cfg.Router.LongContextThreshold)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
router:
  default: p,m
providers:
  - name: p
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("default port = %d", cfg.Server.Port)
		}
		if cfg.Router.LongContextThreshold != 60000 {
			t.Errorf("default long context threshold = %d", cfg.Router.LongContextThreshold)
		}
		if cfg.Router.BackgroundThreshold != 200 {
			t.Errorf("default background threshold = %d", cfg.Router.BackgroundThreshold)
		}
		if cfg.Router.Strategy != "error" {
			t.Errorf("default strategy = %q", cfg.Router.Strategy)
		}
		if cfg.Router.Timeout != 2*time.Minute {
			t.Errorf("default timeout = %s", cfg.Router.Timeout)
		}
		if len(cfg.Router.Precedence) == 0 || cfg.Router.Precedence[0] != "image" {
			t.Errorf("default precedence = %v", cfg.Router.Precedence)
		}
		if cfg.Webhook.Timeout != 10*time.Second {
			t.Errorf("default webhook timeout = %s", cfg.Webhook.Timeout)
		}
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("port = %d", cfg.Server.Port)
		}
	})

	t.Run("environment overlay", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 8080
`)
		t.Setenv("HELMGATE_SERVER__PORT", "9999")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("env overlay ignored: port = %d", cfg.Server.Port)
		}
	})
}

func TestProviderLookup(t *testing.T) {
	cfg := &Config{Providers: []ProviderConfig{{Name: "a"}, {Name: "b"}}}

	if p, ok := cfg.Provider("b"); !ok || p.Name != "b" {
		t.Errorf("lookup failed: %v %v", p, ok)
	}
	if _, ok := cfg.Provider("missing"); ok {
		t.Error("found nonexistent provider")
	}
}
