package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a Redis hash so replicas share admin
// logins and flash messages.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. Sessions expire ttl after their last write.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, sessionKey(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget failed: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	k := sessionKey(sid)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, sid, key string) (string, bool, error) {
	k := sessionKey(sid)
	var get *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, k, key)
		pipe.HDel(ctx, k, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis take failed: %w", err)
	}
	return get.Val(), true, nil
}

func (s *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := s.client.HDel(ctx, sessionKey(sid), key).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(sid string) string {
	return fmt.Sprintf("market:session:%s", sid)
}

var _ Store = (*RedisStore)(nil)
