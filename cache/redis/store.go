// Package redis provides a cache.Store on Redis. Entries survive process
// restarts and are shared by every process using the same namespace.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/cache/internal/tracking"
)

// scanBatch is the COUNT hint for SCAN during Reset.
const scanBatch = 500

// Store implements cache.Store using Redis as the backend.
type Store struct {
	client    *redis.Client
	config    *Config
	namespace string
	closed    atomic.Bool
}

var _ cache.Store = (*Store)(nil)

// NewStore creates a Redis-backed store.
// Validates configuration and establishes connection.
func NewStore(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, cache.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Store{
		client:    client,
		config:    cfg,
		namespace: cfg.namespace(),
	}, nil
}

func (s *Store) key(k string) string {
	return s.namespace + ":" + k
}

// Get retrieves a value from the store.
// Returns cache.ErrNotFound if the key doesn't exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	result, err := s.client.Get(ctx, s.key(key)).Bytes()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpGet, duration, false, nil, s.namespace)
		return nil, cache.ErrNotFound
	}

	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpGet, duration, err == nil, err, s.namespace)

	if err != nil {
		return nil, cache.NewOperationError(tracking.OpGet, key, err)
	}
	return result, nil
}

// Set stores value with a Redis TTL of ttl. A non-positive ttl means the
// entry is already stale, so the key is deleted instead.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}

	start := time.Now()
	err := s.client.Set(ctx, s.key(key), value, ttl).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpSet, time.Since(start), false, err, s.namespace)

	if err != nil {
		return cache.NewOperationError(tracking.OpSet, key, err)
	}
	return nil
}

// Delete removes a key from the store.
// Does not return error if key doesn't exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := s.client.Del(ctx, s.key(key)).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpDelete, time.Since(start), false, err, s.namespace)

	if err != nil {
		return cache.NewOperationError(tracking.OpDelete, key, err)
	}
	return nil
}

// Reset deletes every key under the namespace with SCAN + DEL. Other
// namespaces and the rest of the database are untouched.
func (s *Store) Reset(ctx context.Context) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := s.reset(ctx)
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpReset, time.Since(start), false, err, s.namespace)

	if err != nil {
		return cache.NewOperationError(tracking.OpReset, s.namespace+":*", err)
	}
	return nil
}

func (s *Store) reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.namespace+":*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Health checks if the Redis connection is healthy.
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := s.client.Ping(ctx).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpHealth, time.Since(start), false, err, s.namespace)

	if err != nil {
		return cache.NewConnectionError("ping", s.config.Address(), err)
	}
	return nil
}

// Close closes the Redis client and releases resources.
// Close is idempotent; calls after the first return cache.ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return s.client.Close()
}

// Labels implements cache.Labeled.
func (s *Store) Labels() (system, namespace string) {
	return tracking.SystemRedis, s.namespace
}
