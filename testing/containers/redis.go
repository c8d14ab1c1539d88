//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-netkit/config"
)

// RedisContainerConfig holds configuration for the Redis test container.
type RedisContainerConfig struct {
	// ImageTag selects the Redis image (default: "7-alpine").
	ImageTag string
	// StartupTimeout bounds container readiness (default: 60s).
	StartupTimeout time.Duration
}

// DefaultRedisConfig returns the default container settings.
func DefaultRedisConfig() *RedisContainerConfig {
	return &RedisContainerConfig{
		ImageTag:       "7-alpine",
		StartupTimeout: 60 * time.Second,
	}
}

// RedisContainer is a running Redis server for cache backend tests.
type RedisContainer struct {
	container *redis.RedisContainer
	host      string
	port      int
}

// StartRedisContainer starts Redis and resolves its mapped address.
// A nil cfg uses DefaultRedisConfig. The test is skipped without Docker.
func StartRedisContainer(ctx context.Context, t *testing.T, cfg *RedisContainerConfig) (*RedisContainer, error) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	skipWithoutDocker(ctx, t)

	c, err := redis.Run(ctx,
		fmt.Sprintf("redis:%s", cfg.ImageTag),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis port: %w", err)
	}

	t.Logf("Redis container started at %s:%d", host, mapped.Int())
	return &RedisContainer{container: c, host: host, port: mapped.Int()}, nil
}

// MustStartRedisContainer is StartRedisContainer that fails the test on error.
func MustStartRedisContainer(ctx context.Context, t *testing.T, cfg *RedisContainerConfig) *RedisContainer {
	t.Helper()
	c, err := StartRedisContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	return c
}

// Host returns the container host.
func (r *RedisContainer) Host() string {
	return r.host
}

// Port returns the host port mapped to 6379.
func (r *RedisContainer) Port() int {
	return r.port
}

// CacheConfig returns a redis-backed cache section pointing at the container.
func (r *RedisContainer) CacheConfig(namespace string) config.CacheConfig {
	cfg := config.Default().Cache
	cfg.Backend = config.BackendRedis
	cfg.Namespace = namespace
	cfg.Redis.Host = r.host
	cfg.Redis.Port = r.port
	return cfg
}

// Terminate stops and removes the container.
func (r *RedisContainer) Terminate(ctx context.Context) error {
	if r.container == nil {
		return nil
	}
	return r.container.Terminate(ctx)
}

// WithCleanup terminates the container when the test finishes.
func (r *RedisContainer) WithCleanup(t *testing.T) *RedisContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := r.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate Redis container: %v", err)
		}
	})
	return r
}
