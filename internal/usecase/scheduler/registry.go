package scheduler

import (
	"sort"
	"sync"
)

// Registry is the set of sessions the scheduler currently tracks, keyed by meeting ID
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Session)}
}

// Get returns the session for id
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	return s, ok
}

// Has reports whether a session for id is tracked
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Insert adds s unless a session with the same ID is already tracked
func (r *Registry) Insert(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[s.ID]; exists {
		return false
	}
	r.items[s.ID] = s
	return true
}

// Remove deletes s, leaving a different session stored under the same ID untouched
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.items[s.ID]; ok && cur == s {
		delete(r.items, s.ID)
		return true
	}
	return false
}

// List returns tracked sessions ordered by start time
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Terminal returns the tracked sessions that reached ended or failed
func (r *Registry) Terminal() []*Session {
	var out []*Session
	for _, s := range r.List() {
		if s.Status().IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
