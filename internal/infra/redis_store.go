package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/seenimoa/cnbtaylor/pkg/models"
)

// RedisStore keeps entries in Redis as JSON strings under prefix+key.
// Freshness is decided from the stored timestamp; the Redis expiry only
// reclaims space.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   storeOptions
}

// RedisConfig holds connection settings for NewRedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, opts ...Option) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, opts: buildOptions(opts)}
}

// Close closes the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) read(ctx context.Context, key string) (envelope, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return envelope{}, false, nil
	}
	if err != nil {
		return envelope{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	e, err := decodeEnvelope(data)
	if err != nil {
		return envelope{}, true, fmt.Errorf("%s: %w", key, err)
	}
	return e, true, nil
}

// Get retrieves a fresh payload.
func (r *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	e, ok, err := r.read(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if !r.opts.fresh(e) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

// Set stores payload under key. The key expires after twice the TTL.
func (r *RedisStore) Set(ctx context.Context, key string, payload any) error {
	data, err := newEnvelope(r.opts.clock(), payload)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 2*r.opts.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Info describes the entry under key.
func (r *RedisStore) Info(ctx context.Context, key string) models.CacheInfo {
	e, ok, err := r.read(ctx, key)
	switch {
	case !ok:
		return models.CacheInfo{}
	case err != nil:
		return models.CacheInfo{Exists: true}
	}
	return r.opts.info(e)
}
