// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

type entry struct {
	session *triage.Session
	expires time.Time
}

// Store holds sessions in memory. Suitable for a single replica and for tests.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry // session ID -> session
	ttl      time.Duration
	now      func() time.Time

	sweepEvery time.Duration
	nextSweep  time.Time
}

// sweepInterval bounds how often Put scans the map for expired sessions.
const sweepInterval = time.Minute

// New initializes a new in-memory Store. Sessions expire ttl after their
// last Put; ttl <= 0 keeps them until deleted.
func New(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,

		sweepEvery: sweepInterval,
	}
}

// Get retrieves a session by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil, false, nil
	}
	return e.session.Clone(), true, nil
}

// Put stores a copy of the session and refreshes its expiry.
func (s *Store) Put(_ context.Context, sess *triage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{session: sess.Clone()}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.sessions[sess.ID] = e
	s.sweepLocked()
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// live returns the number of unexpired sessions.
func (s *Store) live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.sessions {
		if !s.expired(e) {
			n++
		}
	}
	return n
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

// sweepLocked drops expired sessions at most once per sweepEvery so writes
// stay O(1) between sweeps. Expired entries are invisible to Get either way.
func (s *Store) sweepLocked() {
	now := s.now()
	if s.ttl <= 0 || now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(s.sweepEvery)
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
		}
	}
}
