// Package kvpkg provides access to the shared key-value store backing
// rate-limit counters and idempotency records.
package kvpkg

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates that the key is not present in the store.
var ErrNotFound = errors.New("key not found")

// Store is the minimal atomic key-value interface the middleware needs.
// All counters are shared across worker instances, never process-local.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Redis implements Store on top of a redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis returns a Store backed by the redis instance at the given address.
func NewRedis(address string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: address}),
	}
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}

		return "", err
	}

	return val, nil
}

// SetEx stores value under key with the given ttl.
func (r *Redis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.SetEx(ctx, key, value, ttl).Err()
}

// Incr atomically increments the counter under key and returns the new count.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Expire sets the ttl of an existing key.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// Ping checks connectivity to the underlying redis instance.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
