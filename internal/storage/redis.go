package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisKV implements KV on Redis strings. Keys are stored as
// "<prefix>:<key>".
type RedisKV struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisKV wraps an existing client. The caller keeps ownership of it.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// DialRedisKV connects to addr and verifies the connection.
func DialRedisKV(ctx context.Context, cfg Config) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	kv := NewRedisKV(client, cfg.RedisPrefix)
	kv.owned = true
	return kv, nil
}

func (r *RedisKV) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

// GetItem returns the value stored under key.
func (r *RedisKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %v", ErrRedisUnavailable, key, err)
	}
	return v, true, nil
}

// SetItem stores value under key with no expiry.
func (r *RedisKV) SetItem(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", ErrRedisUnavailable, key, err)
	}
	return nil
}

// RemoveItem deletes key.
func (r *RedisKV) RemoveItem(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: remove %q: %v", ErrRedisUnavailable, key, err)
	}
	return nil
}

// Close closes the client if this store dialed it.
func (r *RedisKV) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
