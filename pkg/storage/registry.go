package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/fableflow/pkg/domain/types"
	"github.com/dshills/fableflow/pkg/engine"
)

// SessionRegistry holds live debug sessions in memory, keyed by session ID.
// Sessions live here for the duration of a debug run; finished sessions are
// persisted separately through the trace repository.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*engine.State
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[types.SessionID]*engine.State),
	}
}

// Store registers a session, replacing any existing session with the same ID.
func (r *SessionRegistry) Store(s *engine.State) error {
	if s == nil {
		return fmt.Errorf("cannot store nil session")
	}
	if s.SessionID.IsZero() {
		return fmt.Errorf("session ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = s
	return nil
}

// Get returns the session with the given ID, if registered.
func (r *SessionRegistry) Get(id types.SessionID) (*engine.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Take removes and returns the session with the given ID. Used when a session
// finishes and its trace moves to persistent storage.
func (r *SessionRegistry) Take(id types.SessionID) (*engine.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// List returns the IDs of all registered sessions in sorted order.
func (r *SessionRegistry) List() []types.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.SessionID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
