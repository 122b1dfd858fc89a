// Package session keeps one in-memory conversation record per identity key.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/autopodbor/intake-bot/internal/domain"
)

type entry struct {
	session  *domain.Session
	lastSeen time.Time
}

// Store owns every live session. The lock guards the map only; a session is
// mutated by the single goroutine handling its conversation.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrCreate returns the session for key, creating an idle one if needed,
// and marks it as seen.
func (s *Store) GetOrCreate(key string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{session: domain.NewSession(key)}
		s.entries[key] = e
		slog.Debug("Session created", "identity_key", key)
	}
	e.lastSeen = s.now()
	return e.session
}

// Get returns the session for key, or nil.
func (s *Store) Get(key string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.session
	}
	return nil
}

// Delete forgets the session for key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictIdle removes sessions not seen for longer than ttl and returns their
// keys. A non-positive ttl keeps everything.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var evicted []string
	for key, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}
