package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"condo-rag/internal/config"
)

// Store is the expiring key/value backend shared by the response cache and
// the usage gate. A miss is reported with the found flag, not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// RedisStore implements Store on a Redis instance, which may serve a whole
// fleet of request-handling workers.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
