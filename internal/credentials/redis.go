//go:build !js || !wasm

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where RedisStore keeps the record unless told otherwise.
const DefaultRedisKey = "bearer-proxy:credentials"

// RedisStore shares one credential record between processes through Redis.
// Every proxy instance pointed at the same key sees the same session.
type RedisStore struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisStore(rdb redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Read(ctx context.Context) (*Record, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials from redis: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse credentials from redis: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *RedisStore) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store credentials in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials from redis: %w", err)
	}
	return nil
}
