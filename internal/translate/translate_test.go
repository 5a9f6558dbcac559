package translate

import (
	"testing"

	"github.com/helmgate/helmgate/internal/config"
)

func TestNamespace(t *testing.T) {
	families := []string{"claude"}

	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"family prefix gains namespace", "claude-3-5-sonnet", "anthropic/claude-3-5-sonnet"},
		{"provider prefix stripped first", "openrouter:claude-3.5-sonnet", "anthropic/claude-3.5-sonnet"},
		{"foreign family passes through", "gpt-4o", "gpt-4o"},
		{"already namespaced passes through", "anthropic/claude-3-opus", "anthropic/claude-3-opus"},
		{"stripped prefix with foreign family", "groq:llama-3-70b", "llama-3-70b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Namespace(tt.model, "anthropic", families); got != tt.want {
				t.Errorf("Namespace(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}

	t.Run("empty namespace is identity", func(t *testing.T) {
		if got := Namespace("claude-3-5-sonnet", "", families); got != "claude-3-5-sonnet" {
			t.Errorf("got %q", got)
		}
	})
}

func provider(name string, models ...string) *config.ProviderConfig {
	return &config.ProviderConfig{Name: name, Models: models}
}

func TestResolve(t *testing.T) {
	t.Run("literal native match", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyError})
		got, err := tr.Resolve("model-a", provider("p", "model-a", "model-b"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-a" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("mapping from alias", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Mappings: []config.ModelMapping{{From: "fast", To: "model-b"}},
		})
		got, err := tr.Resolve("fast", provider("p", "model-b"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-b" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("mapping with provider-qualified target", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Mappings: []config.ModelMapping{{From: "fast", To: "other,model-c"}},
		})
		got, err := tr.Resolve("fast", provider("other"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-c" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("provider-qualified mapping bound to its provider", func(t *testing.T) {
		// The rule names "other"; while candidate "p" is being tried it
		// does not apply and resolution falls through.
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Mappings: []config.ModelMapping{{From: "fast", To: "other,model-c"}},
		})
		if _, err := tr.Resolve("fast", provider("p", "model-a")); err == nil {
			t.Error("mapping for a different provider applied to this candidate")
		}
	})

	t.Run("later rule applies when earlier is provider-bound", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Mappings: []config.ModelMapping{
				{From: "fast", To: "other,model-c"},
				{From: "fast", To: "model-p"},
			},
		})
		got, err := tr.Resolve("fast", provider("p"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-p" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bidirectional mapping reverses", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Mappings: []config.ModelMapping{{From: "alias", To: "native", Bidirectional: true}},
		})
		got, err := tr.Resolve("native", provider("p"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "alias" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("namespacing applies", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyError})
		p := provider("p")
		p.Namespace = "anthropic"
		got, err := tr.Resolve("claude-3-5-haiku", p)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "anthropic/claude-3-5-haiku" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("error strategy rejects unknown model", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyError})
		if _, err := tr.Resolve("mystery", provider("p", "model-a")); err == nil {
			t.Error("expected unsupported model error")
		}
	})

	t.Run("fuzzy strategy picks nearest", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyFuzzy})
		got, err := tr.Resolve("model-aa", provider("p", "model-a", "completely-different"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-a" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("fuzzy ties break toward earlier model", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyFuzzy})
		got, err := tr.Resolve("model-x", provider("p", "model-a", "model-b"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != "model-a" {
			t.Errorf("tie broke to %q, want model-a", got)
		}
	})

	t.Run("fuzzy with no models fails", func(t *testing.T) {
		tr := New(&config.RouterConfig{Strategy: StrategyFuzzy})
		if _, err := tr.Resolve("anything", provider("p")); err == nil {
			t.Error("expected error with no native models")
		}
	})

	t.Run("exclusion rejects resolved model", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Exclusions: []config.ModelExclusion{
				{Provider: "p", Patterns: []string{"*-preview"}},
			},
		})
		if _, err := tr.Resolve("model-preview", provider("p", "model-preview")); err == nil {
			t.Error("expected exclusion to reject the model")
		}
	})

	t.Run("exclusion scoped to its provider", func(t *testing.T) {
		tr := New(&config.RouterConfig{
			Strategy: StrategyError,
			Exclusions: []config.ModelExclusion{
				{Provider: "other", Patterns: []string{"*"}},
			},
		})
		if _, err := tr.Resolve("model-a", provider("p", "model-a")); err != nil {
			t.Errorf("exclusion leaked across providers: %v", err)
		}
	})
}
