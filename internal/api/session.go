package api

import (
	"sync"
	"time"
)

// Session holds the token returned by Login.
//
// Thread-safety: all methods are safe for concurrent use. Async queries
// read the token while a 401 on another goroutine may clear it.
type Session struct {
	mu        sync.RWMutex
	id        string
	userID    string
	expiresAt time.Time
}

// Set stores a new session. ttl is the server-reported lifetime in seconds;
// zero means the server did not say.
func (s *Session) Set(id, userID string, ttl int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.userID = userID
	s.expiresAt = time.Time{}
	if ttl > 0 {
		s.expiresAt = now.Add(time.Duration(ttl) * time.Second)
	}
}

// Clear forgets the session.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.userID = ""
	s.expiresAt = time.Time{}
}

// ID returns the session token, or ErrNotAuthenticated if there is none.
func (s *Session) ID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == "" {
		return "", ErrNotAuthenticated
	}
	return s.id, nil
}

// UserID returns the id of the authenticated user.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Valid reports whether a session is held and, when the server gave a TTL,
// has not yet expired at now. The server remains the authority: a Valid
// session can still be rejected.
func (s *Session) Valid(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == "" {
		return false
	}
	return s.expiresAt.IsZero() || now.Before(s.expiresAt)
}

// ExpiresAt returns the local expiry estimate, or the zero time if unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}
