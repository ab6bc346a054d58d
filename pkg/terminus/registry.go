package terminus

import (
	"errors"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrNotFound     = errors.New("terminus not found")
	ErrDuplicateTID = errors.New("duplicate TID")
)

// Registry is the shared mapping from TID to terminus. It is read by all
// platform components and mutated only by lifecycle transitions.
type Registry struct {
	mu      sync.RWMutex
	termini map[TID]*Terminus
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{termini: make(map[TID]*Terminus)}
}

// Add registers a terminus under its TID.
func (r *Registry) Add(t *Terminus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.termini[t.TID()]; exists {
		return ErrDuplicateTID
	}
	r.termini[t.TID()] = t
	return nil
}

// Remove deletes the terminus with the given TID. Safe to call on absent
// TIDs.
func (r *Registry) Remove(tid TID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.termini, tid)
}

// Get returns the terminus with the given TID.
func (r *Registry) Get(tid TID) (*Terminus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.termini[tid]
	if !exists {
		return nil, ErrNotFound
	}
	return t, nil
}

// Contains reports whether the TID is registered.
func (r *Registry) Contains(tid TID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.termini[tid]
	return exists
}

// TIDs returns all registered TIDs in ascending order.
func (r *Registry) TIDs() []TID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TID, 0, len(r.termini))
	for tid := range r.termini {
		out = append(out, tid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered termini.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.termini)
}
