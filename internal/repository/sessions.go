// Package repository owns the in-memory session store. Sessions exist only
// for the lifetime of the process; there is no persisted conversation state.
package repository

import (
	"sync"
	"time"

	"article-valet/internal/domain"
)

// SessionStore is a synchronized map of chat id to conversation session.
// GetOrCreate and Remove are the only mutation points for map membership;
// callers mutate a session's fields only from that chat's serialized handler
// (see handler.Dispatcher), so the store does not lock individual sessions.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*domain.Session),
		now:      time.Now,
	}
}

// GetOrCreate returns the session for chatID, creating a fresh one in
// AwaitingLink on first contact. LastActivity is bumped on every call.
func (s *SessionStore) GetOrCreate(chatID int64) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &domain.Session{ChatID: chatID, State: domain.StateAwaitingLink}
		s.sessions[chatID] = sess
	}
	sess.LastActivity = s.now()
	return sess
}

// Remove discards the session for chatID. A subsequent message from the same
// chat gets a fresh session starting at AwaitingLink.
func (s *SessionStore) Remove(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PruneIdle drops sessions whose last activity is older than maxIdle and
// returns how many were dropped. Abandoned turns would otherwise grow the map
// without bound.
func (s *SessionStore) PruneIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	pruned := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}
