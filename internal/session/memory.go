package session

import (
	"context"
	"sync"
	"time"

	"procurement-engine/internal/core"
)

type entry struct {
	session   core.AmendmentSession
	touchedAt time.Time
}

// MemoryStore is a thread-safe in-memory Store with TTL expiry.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]entry
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, token string) (core.AmendmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[token]
	if !ok {
		return core.AmendmentSession{}, ErrNotFound
	}
	if s.expired(e) {
		delete(s.sessions, token)
		return core.AmendmentSession{}, ErrNotFound
	}
	return e.session, nil
}

func (s *MemoryStore) Put(_ context.Context, token string, sess core.AmendmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = entry{session: sess, touchedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Len returns the number of held sessions, expired ones included until purged.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(e entry) bool {
	return s.now().Sub(e.touchedAt) > s.ttl
}

// StartPurge evicts expired sessions every interval until ctx is done.
func (s *MemoryStore) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purge()
			}
		}
	}()
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, token)
		}
	}
}
