// Package config loads and validates the gateway configuration. All
// configuration errors surface here, at process start; request-time code can
// assume a well-formed, immutable Config.
package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Wire framings a provider can speak.
const (
	FramingOpenAI    = "openai"
	FramingAnthropic = "anthropic"
)

type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Providers []ProviderConfig `koanf:"providers"`
	Router    RouterConfig     `koanf:"router"`
	Webhook   WebhookConfig    `koanf:"webhook"`
	Ledger    LedgerConfig     `koanf:"ledger"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// ProviderConfig describes one upstream provider. Names are unique within a
// configuration; anything referencing an unknown name fails at load.
type ProviderConfig struct {
	Name         string   `koanf:"name"`
	APIBaseURL   string   `koanf:"api_base_url"`
	APIKey       string   `koanf:"api_key"`
	Framing      string   `koanf:"framing"` // "openai" (default) or "anthropic"
	Namespace    string   `koanf:"namespace"`
	Models       []string `koanf:"models"`
	Transformers []string `koanf:"transformers"`
}

// RouterConfig drives scenario selection and model translation. Scenario
// fields hold RouteSpec strings ("provider,model|provider,model|...").
type RouterConfig struct {
	Default     string `koanf:"default"`
	Background  string `koanf:"background"`
	Think       string `koanf:"think"`
	LongContext string `koanf:"long_context"`
	WebSearch   string `koanf:"web_search"`
	Image       string `koanf:"image"`

	LongContextThreshold int `koanf:"long_context_threshold"`
	BackgroundThreshold  int `koanf:"background_threshold"`

	// Precedence orders scenario evaluation. Defaults to
	// image, long_context, web_search, think, background.
	Precedence []string `koanf:"precedence"`

	ReasoningKeywords []string `koanf:"reasoning_keywords"`

	Mappings   []ModelMapping   `koanf:"mappings"`
	Exclusions []ModelExclusion `koanf:"exclusions"`

	// Strategy is the translation fallback: "error" or "fuzzy".
	Strategy string `koanf:"strategy"`

	Timeout time.Duration `koanf:"timeout"`
}

// ModelMapping maps a caller-facing alias to a concrete target. To is either
// "provider,model" or a bare model name for the already-selected provider.
type ModelMapping struct {
	From          string `koanf:"from"`
	To            string `koanf:"to"`
	Bidirectional bool   `koanf:"bidirectional"`
}

// ModelExclusion denies resolved models matching glob patterns for one
// provider.
type ModelExclusion struct {
	Provider string   `koanf:"provider"`
	Patterns []string `koanf:"patterns"`
}

type WebhookConfig struct {
	URL     string        `koanf:"url"`
	Secret  string        `koanf:"secret"`
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

type LedgerConfig struct {
	Path string `koanf:"path"`
}

// DefaultPrecedence is the scenario evaluation order used when the
// configuration does not override it.
var DefaultPrecedence = []string{"image", "long_context", "web_search", "think", "background"}

// DefaultReasoningKeywords trigger the think scenario when they appear in
// message text.
var DefaultReasoningKeywords = []string{"think", "reason", "analyze", "step by step", "plan"}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (YAML), overlays HELMGATE_* environment
// variables, applies defaults, and substitutes ${VAR} references in secrets.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("HELMGATE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "HELMGATE_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = substituteEnvVars(cfg.Providers[i].APIKey)
	}
	cfg.Webhook.Secret = substituteEnvVars(cfg.Webhook.Secret)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Router.Precedence) == 0 {
		cfg.Router.Precedence = DefaultPrecedence
	}
	if len(cfg.Router.ReasoningKeywords) == 0 {
		cfg.Router.ReasoningKeywords = DefaultReasoningKeywords
	}
	if cfg.Router.LongContextThreshold == 0 {
		cfg.Router.LongContextThreshold = 60000
	}
	if cfg.Router.BackgroundThreshold == 0 {
		cfg.Router.BackgroundThreshold = 200
	}
	if cfg.Router.Strategy == "" {
		cfg.Router.Strategy = "error"
	}
	if cfg.Router.Timeout == 0 {
		cfg.Router.Timeout = 2 * time.Minute
	}
	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Framing == "" {
			cfg.Providers[i].Framing = FramingOpenAI
		}
	}
}

// Provider returns the provider config by name.
func (c *Config) Provider(name string) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
