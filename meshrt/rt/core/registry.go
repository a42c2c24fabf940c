package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry owns the loaded models in insertion order. Iteration order is the
// order geometry is packed into the combined buffer.
type Registry struct {
	mu      sync.RWMutex
	order   []*Model
	byID    map[uuid.UUID]*Model
	version uint64
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*Model)}
}

func (r *Registry) Add(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return fmt.Errorf("model %s (%q) already registered", m.ID, m.Label)
	}
	r.byID[m.ID] = m
	r.order = append(r.order, m)
	r.version++
	return nil
}

// Remove unregisters a model and reports whether it was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, m := range r.order {
		if m.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.version++
	return true
}

func (r *Registry) Get(id uuid.UUID) *Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Models returns a snapshot in insertion order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Version changes on every add or remove.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
