package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore keeps cached responses in Redis so replays survive
// restarts and are shared between replicas.
type RedisIdempotencyStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisIdempotencyOption func(*RedisIdempotencyStore)

func WithIdempotencyPrefix(prefix string) RedisIdempotencyOption {
	return func(s *RedisIdempotencyStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration, opts ...RedisIdempotencyOption) *RedisIdempotencyStore {
	s := &RedisIdempotencyStore{
		rdb:    rdb,
		prefix: "idempotency",
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var response CachedResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &response, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stop is a no-op; the Redis client is owned and closed by pkg/client.
func (s *RedisIdempotencyStore) Stop() {}

func (s *RedisIdempotencyStore) redisKey(key string) string {
	return s.prefix + ":" + key
}
