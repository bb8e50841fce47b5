package ports

import (
	"context"
	"time"
)

// SessionStore remembers consumed challenge sessions so they cannot be replayed
type SessionStore interface {
	// Consume marks key as used. It returns false when key was already consumed.
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so the session can be presented again
	Release(ctx context.Context, key string) error
}
