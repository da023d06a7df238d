package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Registry maps session ids to their states.
type Registry struct {
	deps Deps

	mu     sync.RWMutex
	states map[string]*State
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:   deps,
		states: make(map[string]*State),
	}
}

// Create starts a new session under a fresh id.
func (r *Registry) Create() *State {
	s := newState(NewID(), r.deps)
	r.mu.Lock()
	r.states[s.ID()] = s
	r.mu.Unlock()
	slog.Debug("session created", "session_id", s.ID())
	return s
}

// Get returns the state for id, if any, and records activity.
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.RLock()
	s, ok := r.states[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// GetOrCreate returns the state for id, adopting the id when unknown.
// OAuth redirects carry the original session id back after a full reload;
// adopting it keeps the backend's per-session link.
func (r *Registry) GetOrCreate(id string) *State {
	if !ValidID(id) {
		return r.Create()
	}
	if s, ok := r.Get(id); ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[id]; ok {
		return s
	}
	s := newState(id, r.deps)
	r.states[id] = s
	slog.Debug("session adopted", "session_id", id)
	return s
}

// Reset rotates the session to a fresh id and starts a new conversation.
// Returns the new id.
func (r *Registry) Reset(s *State) string {
	oldID := s.ID()
	newID := NewID()

	r.mu.Lock()
	delete(r.states, oldID)
	r.states[newID] = s
	r.mu.Unlock()

	s.reset(newID)
	slog.Info("session reset", "old_session_id", oldID, "session_id", newID)
	return newID
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// SweepIdle implements IdleSweeper.
func (r *Registry) SweepIdle(idleTTL time.Duration) int {
	cutoff := time.Now().Add(-idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.states {
		if s.LastSeen().Before(cutoff) {
			delete(r.states, id)
			removed++
		}
	}
	return removed
}

// ValidID reports whether id looks like a session id this service issued.
func ValidID(id string) bool {
	if !strings.HasPrefix(id, "session_") || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

var _ IdleSweeper = (*Registry)(nil)
