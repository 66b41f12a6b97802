package sink

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores sinks by name and rejects duplicates.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry returns a registry holding the given sinks.
func NewRegistry(sinks ...Sink) *Registry {
	r := &Registry{sinks: make(map[string]Sink)}
	for _, s := range sinks {
		r.MustRegister(s)
	}
	return r
}

// Register adds a sink by its Name().
func (r *Registry) Register(s Sink) error {
	if s == nil {
		return fmt.Errorf("sink: sink is required")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("sink: sink name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[name]; exists {
		return fmt.Errorf("sink: %q already registered", name)
	}
	r.sinks[name] = s
	return nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(s Sink) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get retrieves a sink by name.
func (r *Registry) Get(name string) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sinks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

func (r *Registry) MustGet(name string) Sink {
	s, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return s
}

// List returns the sorted sink names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sinks[name]
	return ok
}
