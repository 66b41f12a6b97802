package handle

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry owns live handles for the current session. Every registration
// mints a fresh id; there is no way to persist or import ids.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	newID   func() string
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		handles: make(map[string]Handle),
		newID:   uuid.NewString,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Register stores h under a new id.
func (r *Registry) Register(h Handle) (string, error) {
	if h == nil {
		return "", ErrInvalidHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for id == "" || r.handles[id] != nil {
		id = uuid.NewString()
	}
	r.handles[id] = h
	return id, nil
}

// MustRegister panics on registration failure.
func (r *Registry) MustRegister(h Handle) string {
	id, err := r.Register(h)
	if err != nil {
		panic(err)
	}
	return id
}

// Get looks up a live handle.
func (r *Registry) Get(id string) (Handle, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	return h, ok
}

// Remove drops the handle and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	return true
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// IDs returns the registered ids sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every handle, ending the session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]Handle)
}
