package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory turns a member's provider, model name and temperature into a Model.
type Factory interface {
	Model(provider, name string, temperature float64) (Model, error)
}

// Constructor builds a Model for one provider.
type Constructor func(name string, temperature float64) (Model, error)

// Registry is a Factory keyed by provider name. Provider names are matched
// case-insensitively. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	ctors    map[string]Constructor
	fallback string
}

// NewRegistry creates an empty registry. fallback names the provider used
// when a member leaves its provider blank.
func NewRegistry(fallback string) *Registry {
	return &Registry{ctors: make(map[string]Constructor), fallback: strings.ToLower(fallback)}
}

// Register adds or replaces the constructor for provider.
func (r *Registry) Register(provider string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[strings.ToLower(provider)] = ctor
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Model implements Factory.
func (r *Registry) Model(provider, name string, temperature float64) (Model, error) {
	key := strings.ToLower(provider)
	if key == "" {
		key = r.fallback
	}

	r.mu.RLock()
	ctor, ok := r.ctors[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}

	return ctor(name, temperature)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(provider, name string, temperature float64) (Model, error)

// Model implements Factory.
func (f FactoryFunc) Model(provider, name string, temperature float64) (Model, error) {
	return f(provider, name, temperature)
}
