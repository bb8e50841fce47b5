package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/bustrack/ports"
)

// RedisStore is a Redis implementation of the SessionStore interface
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store. prefix namespaces the keys.
func NewRedisStore(client redis.UniversalClient, prefix string) ports.SessionStore {
	if prefix == "" {
		prefix = "bustrack:session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Consume records key with SETNX so only the first caller wins, even across instances
func (s *RedisStore) Consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume session: %w", err)
	}

	return ok, nil
}

// Release deletes the consumed marker of key
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release session: %w", err)
	}

	return nil
}
