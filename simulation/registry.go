package simulation

import (
	"sort"
	"sync"
)

// Constructor creates a component of one type from its parameters.
type Constructor func(s *Simulation, name string, params Params) (Component, error)

// Registry maps component type names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor. It reports false if the type is already
// registered.
func (r *Registry) Register(typeName string, ctor Constructor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[typeName]; exists {
		return false
	}

	r.ctors[typeName] = ctor

	return true
}

// Unregister removes a constructor. It reports false if the type is not
// registered.
func (r *Registry) Unregister(typeName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[typeName]; !exists {
		return false
	}

	delete(r.ctors, typeName)

	return true
}

// Lookup returns the constructor of a type.
func (r *Registry) Lookup(typeName string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.ctors[typeName]

	return ctor, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}
