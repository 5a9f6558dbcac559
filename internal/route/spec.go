// Package route selects a routing scenario for each request and yields its
// ordered fallback chain of (provider, model) candidates.
package route

import (
	"strings"

	"github.com/helmgate/helmgate/internal/domain"
)

// Candidate is one (provider, model) pair in a fallback chain.
type Candidate struct {
	Provider string
	Model    string
}

// Spec is an ordered, non-empty fallback chain.
type Spec []Candidate

// ParseSpec parses the RouteSpec grammar: "provider,model" for a single
// candidate, candidates joined by "|" for a chain. An empty string or a
// candidate without a comma is a parse error.
func ParseSpec(s string) (Spec, error) {
	if strings.TrimSpace(s) == "" {
		return nil, domain.ConfigError("empty route spec")
	}

	parts := strings.Split(s, "|")
	spec := make(Spec, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		provider, model, ok := strings.Cut(part, ",")
		if !ok {
			return nil, domain.ConfigError("route candidate %q must be provider,model", part)
		}
		provider = strings.TrimSpace(provider)
		model = strings.TrimSpace(model)
		if provider == "" || model == "" {
			return nil, domain.ConfigError("route candidate %q must be provider,model", part)
		}
		spec = append(spec, Candidate{Provider: provider, Model: model})
	}
	return spec, nil
}

// String renders the spec back to its textual grammar.
func (s Spec) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Provider + "," + c.Model
	}
	return strings.Join(parts, "|")
}
