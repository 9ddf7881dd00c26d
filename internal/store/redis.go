package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisKV keeps each family in a single Redis hash, so a family scan is
// one HGETALL.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV wraps an existing Redis client. The prefix namespaces the
// engine's hashes and may be empty.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (s *RedisKV) familyKey(family string) string {
	if s.prefix == "" {
		return family
	}
	return fmt.Sprintf("%s:%s", s.prefix, family)
}

func (s *RedisKV) Get(ctx context.Context, family, key string) ([]byte, error) {
	val, err := s.client.HGet(ctx, s.familyKey(family), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return []byte(val), nil
}

func (s *RedisKV) Put(ctx context.Context, family, key string, value []byte) error {
	if err := s.client.HSet(ctx, s.familyKey(family), key, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, family, key string) error {
	if err := s.client.HDel(ctx, s.familyKey(family), key).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *RedisKV) GetAll(ctx context.Context, family string) ([]Entry, error) {
	vals, err := s.client.HGetAll(ctx, s.familyKey(family)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: []byte(vals[k])})
	}
	return entries, nil
}

// Ping checks connectivity for readiness probes.
func (s *RedisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
