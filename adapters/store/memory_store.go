package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/bustrack/ports"
)

// MemoryStore is an in-memory implementation of the SessionStore interface.
// It only protects a single instance.
type MemoryStore struct {
	consumed map[string]time.Time
	mu       sync.Mutex
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.SessionStore {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		consumed: make(map[string]time.Time),
		now:      now,
	}
}

// Consume marks key as consumed until ttl passes
func (s *MemoryStore) Consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	if expiry, exists := s.consumed[key]; exists && now.Before(expiry) {
		return false, nil
	}
	s.consumed[key] = now.Add(ttl)

	return true, nil
}

// Release forgets key
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.consumed, key)
	return nil
}

// sweep drops expired entries; callers hold mu
func (s *MemoryStore) sweep(now time.Time) {
	for key, expiry := range s.consumed {
		if !now.Before(expiry) {
			delete(s.consumed, key)
		}
	}
}
