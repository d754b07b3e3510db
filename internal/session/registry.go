package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live timer per attempt. It is owned by the channel
// handler and passed in explicitly; there is no package-level instance.
// Contract: insert on channel open, remove on channel close.
type Registry struct {
	mu     sync.RWMutex
	timers map[uuid.UUID]*Timer
}

// NewRegistry creates an empty timer registry.
func NewRegistry() *Registry {
	return &Registry{timers: make(map[uuid.UUID]*Timer)}
}

// Put registers a timer for an attempt and returns the previous timer, if
// any. A reconnect replaces the old channel's timer; the caller stops the
// returned one.
func (r *Registry) Put(t *Timer) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.timers[t.attemptID]
	r.timers[t.attemptID] = t
	return prev
}

// Get returns the live timer for an attempt, or nil.
func (r *Registry) Get(attemptID uuid.UUID) *Timer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timers[attemptID]
}

// Remove deregisters t. If another timer has already replaced it (a
// reconnect won the race), the entry is left alone.
func (r *Registry) Remove(t *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timers[t.attemptID] == t {
		delete(r.timers, t.attemptID)
	}
}

// Len reports the number of live timers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}
