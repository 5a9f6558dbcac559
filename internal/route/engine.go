package route

import (
	"strings"

	"github.com/helmgate/helmgate/internal/analyze"
	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/domain"
)

// Scenario is a named routing purpose.
type Scenario string

const (
	ScenarioDefault     Scenario = "default"
	ScenarioBackground  Scenario = "background"
	ScenarioThink       Scenario = "think"
	ScenarioLongContext Scenario = "long_context"
	ScenarioWebSearch   Scenario = "web_search"
	ScenarioImage       Scenario = "image"
	ScenarioOverride    Scenario = "override"
)

// Decision is the outcome of scenario selection: the chosen scenario and its
// ordered candidate chain, returned unchanged from configuration.
type Decision struct {
	Scenario   Scenario
	Candidates Spec
}

// Engine holds the compiled routing table. Built once at startup and shared
// read-only across requests.
type Engine struct {
	specs      map[Scenario]Spec
	precedence []Scenario
}

// NewEngine compiles and validates the router configuration against the
// declared providers. Malformed specs, empty chains, unknown provider
// references, and unknown precedence entries all fail here.
func NewEngine(cfg *config.Config) (*Engine, error) {
	scenarios := map[Scenario]string{
		ScenarioDefault:     cfg.Router.Default,
		ScenarioBackground:  cfg.Router.Background,
		ScenarioThink:       cfg.Router.Think,
		ScenarioLongContext: cfg.Router.LongContext,
		ScenarioWebSearch:   cfg.Router.WebSearch,
		ScenarioImage:       cfg.Router.Image,
	}

	if scenarios[ScenarioDefault] == "" {
		return nil, domain.ConfigError("router.default route spec is required")
	}

	e := &Engine{specs: make(map[Scenario]Spec)}

	for scenario, raw := range scenarios {
		if raw == "" {
			continue
		}
		spec, err := ParseSpec(raw)
		if err != nil {
			return nil, domain.ConfigError("router.%s: %v", scenario, err)
		}
		for _, cand := range spec {
			if _, ok := cfg.Provider(cand.Provider); !ok {
				return nil, domain.ConfigError("router.%s references undeclared provider %q", scenario, cand.Provider)
			}
		}
		e.specs[scenario] = spec
	}

	for _, name := range cfg.Router.Precedence {
		scenario := Scenario(name)
		switch scenario {
		case ScenarioBackground, ScenarioThink, ScenarioLongContext, ScenarioWebSearch, ScenarioImage:
			e.precedence = append(e.precedence, scenario)
		default:
			return nil, domain.ConfigError("router.precedence contains unknown scenario %q", name)
		}
	}

	for _, excl := range cfg.Router.Exclusions {
		if _, ok := cfg.Provider(excl.Provider); !ok {
			return nil, domain.ConfigError("router.exclusions references undeclared provider %q", excl.Provider)
		}
	}

	for _, m := range cfg.Router.Mappings {
		if provider, _, ok := strings.Cut(m.To, ","); ok {
			if _, declared := cfg.Provider(provider); !declared {
				return nil, domain.ConfigError("router.mappings target %q references undeclared provider %q", m.To, provider)
			}
		}
	}

	return e, nil
}

// Decide selects exactly one scenario for the given hints, walking the
// configured precedence over scenarios that have an override; everything
// falls through to default.
func (e *Engine) Decide(hints analyze.Hints) Decision {
	for _, scenario := range e.precedence {
		spec, ok := e.specs[scenario]
		if !ok {
			continue
		}
		if scenarioActive(scenario, hints) {
			return Decision{Scenario: scenario, Candidates: spec}
		}
	}
	return Decision{Scenario: ScenarioDefault, Candidates: e.specs[ScenarioDefault]}
}

func scenarioActive(s Scenario, hints analyze.Hints) bool {
	switch s {
	case ScenarioImage:
		return hints.Image
	case ScenarioLongContext:
		return hints.LongContext
	case ScenarioWebSearch:
		return hints.WebSearch
	case ScenarioThink:
		return hints.Reasoning
	case ScenarioBackground:
		return hints.Background
	default:
		return false
	}
}

// Override parses an explicit "provider:model" (or "provider,model") request
// model, which forces provider selection regardless of routing signals. The
// provider must be declared; otherwise the override is ignored and normal
// routing applies.
func Override(model string, cfg *config.Config) (Decision, bool) {
	var provider, rest string
	var ok bool
	if provider, rest, ok = strings.Cut(model, ":"); !ok {
		provider, rest, ok = strings.Cut(model, ",")
	}
	if !ok || provider == "" || rest == "" {
		return Decision{}, false
	}
	if _, declared := cfg.Provider(provider); !declared {
		return Decision{}, false
	}
	return Decision{
		Scenario:   ScenarioOverride,
		Candidates: Spec{{Provider: provider, Model: rest}},
	}, true
}
