package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore adapts a redis client to the Store interface. Expiry is handled
// natively by redis, so it carries no byte budget of its own; it backs the
// page-fetch cache when redis is configured.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client, namespacing all keys with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}
