// Package translate maps caller-requested model names to provider-native
// ones, honoring aliases, namespacing rules, exclusions, and the configured
// fallback strategy.
package translate

import (
	"path"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/domain"
)

// Fallback strategies for models no rule resolves.
const (
	StrategyError = "error"
	StrategyFuzzy = "fuzzy"
)

// Families are model name prefixes the built-in namespacing rule recognizes.
var Families = []string{"claude"}

// Translator resolves model names for fallback candidates. Built once at
// startup from router configuration.
type Translator struct {
	mappings   []config.ModelMapping
	exclusions map[string][]string
	strategy   string
}

// New builds a translator from the router configuration.
func New(router *config.RouterConfig) *Translator {
	exclusions := make(map[string][]string, len(router.Exclusions))
	for _, excl := range router.Exclusions {
		exclusions[excl.Provider] = append(exclusions[excl.Provider], excl.Patterns...)
	}
	return &Translator{
		mappings:   router.Mappings,
		exclusions: exclusions,
		strategy:   router.Strategy,
	}
}

// Resolve maps requested to a provider-native model name for p, or fails the
// candidate with an unsupported-model error.
func (t *Translator) Resolve(requested string, p *config.ProviderConfig) (string, error) {
	resolved, err := t.resolve(requested, p)
	if err != nil {
		return "", err
	}
	if reason, excluded := t.excluded(resolved, p.Name); excluded {
		return "", domain.UnsupportedModelError(resolved, p.Name, reason)
	}
	return resolved, nil
}

func (t *Translator) resolve(requested string, p *config.ProviderConfig) (string, error) {
	// 1. Literal native match passes through.
	for _, m := range p.Models {
		if m == requested {
			return requested, nil
		}
	}

	// 2. Mapping rules: exact match on from, or on to when bidirectional.
	// A "provider,model" target binds the rule to that provider; it does
	// not apply while a different candidate is being tried.
	for _, rule := range t.mappings {
		if rule.From == requested {
			if model, ok := mappingTarget(rule.To, p); ok {
				return model, nil
			}
			continue
		}
		if rule.Bidirectional && rule.To == requested {
			if model, ok := mappingTarget(rule.From, p); ok {
				return model, nil
			}
		}
	}

	// 3. Provider built-in namespacing.
	if namespaced := Namespace(requested, p.Namespace, Families); namespaced != requested {
		return namespaced, nil
	}

	// 4. Configured fallback strategy.
	switch t.strategy {
	case StrategyFuzzy:
		if nearest, ok := nearestModel(requested, p.Models); ok {
			return nearest, nil
		}
		return "", domain.UnsupportedModelError(requested, p.Name, "no native models to match against")
	default:
		return "", domain.UnsupportedModelError(requested, p.Name, "no translation rule applies")
	}
}

// mappingTarget interprets a mapping target for candidate provider p.
// "provider,model" yields the model half only when provider is p; a bare
// name applies to whichever provider is being tried.
func mappingTarget(to string, p *config.ProviderConfig) (string, bool) {
	if provider, model, ok := strings.Cut(to, ","); ok {
		return model, provider == p.Name
	}
	return to, true
}

// Namespace applies the built-in normalization for providers using
// namespaced slugs: strip any leading "provider:" prefix, then prepend the
// namespace when the name starts with a recognized family prefix and is not
// already namespaced. Anything else passes through unchanged.
func Namespace(model, namespace string, families []string) string {
	if namespace == "" {
		return model
	}
	if _, rest, ok := strings.Cut(model, ":"); ok {
		model = rest
	}
	if strings.Contains(model, "/") {
		return model
	}
	for _, family := range families {
		if strings.HasPrefix(model, family) {
			return namespace + "/" + model
		}
	}
	return model
}

// nearestModel picks the native name with the smallest Levenshtein distance
// to requested. Ties break toward the earlier listed name, keeping the
// choice deterministic.
func nearestModel(requested string, models []string) (string, bool) {
	if len(models) == 0 {
		return "", false
	}
	best := models[0]
	bestDist := levenshtein.ComputeDistance(requested, best)
	for _, m := range models[1:] {
		if d := levenshtein.ComputeDistance(requested, m); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best, true
}

// excluded checks the resolved name against the provider's deny patterns.
func (t *Translator) excluded(model, provider string) (string, bool) {
	for _, pattern := range t.exclusions[provider] {
		if ok, err := path.Match(pattern, model); err == nil && ok {
			return "matches exclusion pattern " + pattern, true
		}
	}
	return "", false
}
