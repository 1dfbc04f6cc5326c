package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// resultKeyPrefix is the key prefix for result data: result:{id}
const resultKeyPrefix = "result:"

// RedisStore implements ResultStore on Redis. Expiry is delegated to Redis
// via SET EX.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time interface check.
var _ ResultStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) resultKey(id string) string {
	return resultKeyPrefix + id
}

func (s *RedisStore) PutResult(ctx context.Context, result *StoredResult) error {
	prepare(result)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.client.Set(ctx, s.resultKey(result.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result %s: %w", result.ID, err)
	}
	log.Debug().Str("result_id", result.ID).Dur("ttl", s.ttl).Msg("Result stored in Redis")
	return nil
}

func (s *RedisStore) GetResult(ctx context.Context, id string) (*StoredResult, error) {
	data, err := s.client.Get(ctx, s.resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", id, err)
	}

	var result StoredResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", id, err)
	}
	return &result, nil
}

// Ping checks connectivity. Used at startup so a bad REDIS_ADDR fails fast.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
