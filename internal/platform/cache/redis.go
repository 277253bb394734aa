// Package cache wraps the Redis client used for short-lived report caching.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// ErrMiss indicates the key was absent.
var ErrMiss = errors.New("cache miss")

// Store is a small JSON cache with TTL. A nil Store is a no-op so callers
// can run without Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore builds a Store with the given default TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get unmarshals the cached value into target.
func (s *Store) Get(ctx context.Context, key string, target any) error {
	if s == nil || s.client == nil {
		return ErrMiss
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	return json.Unmarshal(raw, target)
}

// Set stores value as JSON under key for the default TTL.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

// Invalidate removes keys, typically after a mutating operation.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if s == nil || s.client == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
