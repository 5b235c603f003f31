// Package session holds the single mutable session snapshot shared by every
// view surface. The store is the only shared state in the engine; all other
// components either read it or talk to each other through explicit calls.
package session

import (
	"sync"

	"github.com/gis-qa/reviewer/internal/models"
)

// Store owns the current session and its derived counts. There is exactly
// one writer path: the Loader on initial load and the conversion workflow's
// reload. Counts are recomputed wholesale on every replacement, never
// incrementally updated.
type Store struct {
	mu      sync.RWMutex
	current *models.Session
	counts  models.Counts
}

// NewStore creates a store holding an empty, unloaded session.
func NewStore(sessionID string) *Store {
	return &Store{current: models.NewEmptySession(sessionID)}
}

// Replace swaps in a new session snapshot and recomputes the counts.
func (s *Store) Replace(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	s.counts = models.ComputeCounts(sess.DetailRows)
}

// Session returns the current snapshot. Callers must treat it as read-only;
// mutation goes through Replace.
func (s *Store) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Counts returns the aggregates derived from the current snapshot.
func (s *Store) Counts() models.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// SessionID returns the immutable id of the session under review.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.ID
}
