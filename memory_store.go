package bustrack

import (
	"context"
	"sync"
)

// MemoryTokenStore implements the TokenStore interface using process memory
type MemoryTokenStore struct {
	tokens *TokenSet
	mu     sync.RWMutex
}

// NewMemoryTokenStore creates a new MemoryTokenStore
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load returns a copy of the stored tokens
func (s *MemoryTokenStore) Load(ctx context.Context) (*TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tokens == nil {
		return nil, nil
	}
	tokens := *s.tokens
	return &tokens, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, tokens *TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokens == nil {
		s.tokens = nil
		return nil
	}
	copied := *tokens
	s.tokens = &copied
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nil
	return nil
}
