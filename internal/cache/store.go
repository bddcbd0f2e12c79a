// Package cache implements the read-through cache that fronts upstream CRM
// reads. The store degrades to a pass-through when its backend is down: a
// failed Get is a miss, failed writes are logged and swallowed, and the
// client never sees a cache error.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a key/value store with per-entry TTL.
type Store interface {
	// Get returns the entry and true on a live hit; expired or absent
	// entries (and backend failures) report a miss.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores the entry with the TTL. Failures are absorbed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Invalidate removes one entry. Removing an absent key is a no-op.
	Invalidate(ctx context.Context, key string)
	// InvalidatePrefix removes every entry whose key starts with prefix.
	InvalidatePrefix(ctx context.Context, prefix string)
}

// RedisStore is the shared Store for multi-instance deployments.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Get returns the cached entry, treating any backend error as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.warn("cache get", key, err)
		}
		return nil, false
	}
	return payload, true
}

// Set stores the entry. Redis enforces the TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.warn("cache set", key, err)
	}
}

// Invalidate removes one entry.
func (s *RedisStore) Invalidate(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		s.warn("cache invalidate", key, err)
	}
}

// InvalidatePrefix scans and removes every entry under the prefix.
func (s *RedisStore) InvalidatePrefix(ctx context.Context, prefix string) {
	iter := s.client.Scan(ctx, 0, matchPattern(prefix), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			s.warn("cache invalidate", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		s.warn("cache scan", prefix, err)
	}
}

// matchPattern turns a literal key prefix into a SCAN MATCH pattern. Key
// segments come from CRM account names, which may contain glob
// metacharacters, so those are escaped before the trailing wildcard.
func matchPattern(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(prefix[i])
	}
	b.WriteByte('*')
	return b.String()
}

func (s *RedisStore) warn(op, key string, err error) {
	if s.logger != nil {
		s.logger.Warn(op, slog.String("key", key), slog.Any("error", err))
	}
}
