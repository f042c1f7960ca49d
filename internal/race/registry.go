package race

import (
	"sync"

	"github.com/google/uuid"
)

// Registry owns every live session. It is the single serialization point for
// session membership: all lookups go through the keyed maps here, so events
// for one session can never touch another's state. Sessions are removed
// immediately after their result (or abort) is broadcast and IDs are never
// reused.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byConn   map[string]uuid.UUID
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		byConn:   make(map[string]uuid.UUID),
	}
}

// Add registers a session and indexes its participants' connections.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	for _, p := range s.Participants {
		r.byConn[p.ConnID] = s.ID
	}
}

// Get returns the session with the given ID, if it is still live.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetByConn returns the live session a connection belongs to, if any.
func (r *Registry) GetByConn(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Remove destroys a session's registration and its connection index entries.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	for _, p := range s.Participants {
		if r.byConn[p.ConnID] == id {
			delete(r.byConn, p.ConnID)
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
