package strategy

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"
)

// Constructor builds a fresh strategy instance.
type Constructor func() Strategy

// Registry maps strategy names to constructors. Registration is
// thread-safe; the zero value is not usable, call NewRegistry.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry allocates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register binds a name to a constructor, replacing any previous
// binding for the same name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Create instantiates the named strategy.
func (r *Registry) Create(name string) (Strategy, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown strategy: %s", name)
	}
	return ctor(), nil
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
