package stagestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis stores records as plain string keys. ttl is refreshed on every
// write; zero keeps records until they are deleted.
func NewRedis(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (r *redisStore) Get(ctx context.Context, session, key string) (string, error) {
	v, err := r.client.Get(ctx, redisKey(session, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (r *redisStore) Set(ctx context.Context, session, key, value string) error {
	if err := r.client.Set(ctx, redisKey(session, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, session, key string) error {
	if err := r.client.Del(ctx, redisKey(session, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func redisKey(session, key string) string {
	return fmt.Sprintf("checkout:%s:%s", session, key)
}
