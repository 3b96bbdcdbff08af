package backend

import "sync"

// Registry holds the one executor shared by every caller in the process.
// It is passed explicitly to each call site instead of living in a package
// variable; the sharing invariant comes from handing out the same *Registry.
type Registry struct {
	mu      sync.Mutex
	current Executor
	factory Factory
}

// NewRegistry creates an empty registry that builds its default executor
// with factory on first use.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// Set replaces the slot unconditionally. The previous executor is not
// closed; the caller that installed it still owns it.
func (r *Registry) Set(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = e
}

// Get returns the executor in the slot, constructing and storing a default
// one if the slot is empty. Between two Set calls every Get returns the
// same instance.
func (r *Registry) Get() Executor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		r.current = r.factory()
	}
	return r.current
}

// Close closes the executor in the slot, if any, and empties the slot.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
