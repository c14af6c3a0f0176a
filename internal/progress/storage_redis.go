package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/quantumtrader/academy/internal/platform/cache"
)

// RedisBackend stores each learner's progress in one Redis/Dragonfly hash.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a backend on an existing client. The client is
// owned by the caller.
func NewRedisBackend(client *redis.Client) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Storage(learnerID string) Storage {
	return &redisStorage{client: b.client, hash: cache.Key("progress", learnerID)}
}

func (b *RedisBackend) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error { return nil }

type redisStorage struct {
	client *redis.Client
	hash   string
}

func (s *redisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hash, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("hget %s: %w", key, err)
	}
	return v, true, nil
}

func (s *redisStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *redisStorage) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *redisStorage) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.hash).Err(); err != nil {
		return fmt.Errorf("del progress: %w", err)
	}
	return nil
}
