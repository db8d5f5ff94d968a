package dialog

import (
	"sync"

	"github.com/elektromontazh/orderbot/internal/domain"
)

// Store holds the in-progress session for each user. Sessions exist only
// between a start event and a terminal transition; there is no persistence
// across restarts.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*domain.Session
	locks    map[int64]*sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*domain.Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// LockUser serializes event handling for one user. Two events for the same
// user arriving close together must not race on the same session object;
// unrelated users never contend beyond the map access itself. The returned
// function releases the lock.
func (s *Store) LockUser(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the session for a user, or nil if none is active.
func (s *Store) Get(userID int64) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[userID]
}

// Put installs a session for a user, replacing any prior one.
func (s *Store) Put(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Delete removes the session for a user. Safe to call when none exists.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
