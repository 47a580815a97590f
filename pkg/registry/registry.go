// Package registry maps capability names to the effects that serve them.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Registry manages the available effects.
type Registry struct {
	mu      sync.RWMutex
	effects map[string]ports.Effect
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		effects: make(map[string]ports.Effect),
	}
}

// Register adds an effect to the registry.
// If an effect with the same name exists, it is overwritten.
func (r *Registry) Register(capability string, effect ports.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[capability] = effect
}

// RegisterFunc adds a function as an effect.
func (r *Registry) RegisterFunc(capability string, fn func(ctx context.Context, req domain.Request) (domain.EffectResult, error)) {
	r.Register(capability, ports.EffectFunc(fn))
}

// Lookup returns the effect serving a capability.
func (r *Registry) Lookup(capability string) (ports.Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effects[capability]
	return e, ok
}

// Invoke looks up the effect for req and executes it.
// Returns an error if the capability is not registered.
func (r *Registry) Invoke(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	e, ok := r.Lookup(req.Capability)
	if !ok {
		return domain.EffectResult{}, fmt.Errorf("effect not found: %s", req.Capability)
	}
	return e.Invoke(ctx, req)
}

// Names returns the registered capabilities in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.effects))
	for n := range r.effects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
