// Package session tracks the active user sessions used to key edit locks. It belongs
// to the authentication side of the application: the notebook engine only receives
// the identities and the expiry callbacks.
package session

import (
	"sync"
	"time"
)

// Session is an authenticated user session.
type Session struct {
	ID       string
	UserID   string
	LastSeen time.Time
}

// Registry keeps the active sessions in memory.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock creates a registry reading the time from now.
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

// Touch records activity of a session, creating it when unknown.
func (r *Registry) Touch(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &Session{ID: sessionID, UserID: userID}
		r.sessions[sessionID] = s
	}
	s.UserID = userID
	s.LastSeen = r.now()
}

// Remove forgets a session, e.g. on logout.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Get returns a copy of a session.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Expire removes and returns the sessions idle for longer than idle.
func (r *Registry) Expire(idle time.Duration) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	var expired []Session
	for id, s := range r.sessions {
		if s.LastSeen.Before(cutoff) {
			expired = append(expired, *s)
			delete(r.sessions, id)
		}
	}

	return expired
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
