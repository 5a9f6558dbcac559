// Package transform provides named, stateless, bidirectional adapters
// between the canonical model and provider dialect expectations. A
// provider's configured transformer names become a runtime chain: the
// request direction applies in declared order, the response direction in
// reverse order.
package transform

import (
	"log/slog"
	"sync"

	"github.com/helmgate/helmgate/internal/domain"
)

// Transformer is one named adapter. Either direction may be a no-op; embed
// Identity to get both as identity and override what you need.
type Transformer interface {
	Name() string
	TransformRequest(req *domain.Request) error
	TransformResponse(resp *domain.Response) error
}

// Identity implements both directions as no-ops.
type Identity struct{}

func (Identity) TransformRequest(*domain.Request) error   { return nil }
func (Identity) TransformResponse(*domain.Response) error { return nil }

// Registry maps transformer names to implementations.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Transformer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Transformer)}
}

// Register adds or replaces a transformer under its name.
func (r *Registry) Register(t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[t.Name()] = t
}

// Get looks a transformer up by name.
func (r *Registry) Get(name string) (Transformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// BuildChain resolves names into a runtime chain, preserving order. Unknown
// names are logged and dropped, never fatal.
func (r *Registry) BuildChain(names []string, logger *slog.Logger) Chain {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			if logger != nil {
				logger.Warn("unknown transformer dropped from chain", slog.String("transformer", name))
			}
			continue
		}
		chain = append(chain, t)
	}
	return chain
}

// Chain is an ordered transformer list bound to a provider at dispatch time.
type Chain []Transformer

// TransformRequest applies the chain in declared order.
func (c Chain) TransformRequest(req *domain.Request) error {
	for _, t := range c {
		if err := t.TransformRequest(req); err != nil {
			return err
		}
	}
	return nil
}

// TransformResponse applies the chain in reverse order.
func (c Chain) TransformResponse(resp *domain.Response) error {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].TransformResponse(resp); err != nil {
			return err
		}
	}
	return nil
}
