// Package cache provides the persistent result cache used to memoize
// expensive provider calls.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Get when no live entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Store is a TTL key/value store for JSON-serialized payloads. A zero TTL
// means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// GetJSON reads a cached value into out, treating deserialization failures as
// a miss rather than an error.
func GetJSON(ctx context.Context, s Store, key string, out interface{}) error {
	payload, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return ErrMiss
	}
	return nil
}

// PutJSON serializes v and stores it under key. Serialization errors
// propagate to the caller uncached.
func PutJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, payload, ttl)
}
