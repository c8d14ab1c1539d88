//go:build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/testing/containers"
)

// setupRealRedis creates a real Redis container and store for integration testing.
func setupRealRedis(t *testing.T, namespace string) (*Store, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	redisContainer := containers.MustStartRedisContainer(ctx, t, nil).WithCleanup(t)

	store, err := NewStore(FromConfig(redisContainer.CacheConfig(namespace)))
	require.NoError(t, err, "Failed to create Redis store")

	return store, ctx
}

func TestRealRedisTTLExpiration(t *testing.T) {
	store, ctx := setupRealRedis(t, "it.ttl")
	defer store.Close()

	key := "GET - https://api.example.com/expiring"
	value := []byte("expires-soon")

	require.NoError(t, store.Set(ctx, key, value, 2*time.Second))

	retrieved, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	// Poll rather than sleep a fixed interval; CI clocks drift.
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, key)
		return errors.Is(err, cache.ErrNotFound)
	}, 5*time.Second, 100*time.Millisecond, "Key should expire after TTL")
}

func TestRealRedisEntriesSurviveReconnect(t *testing.T) {
	store, ctx := setupRealRedis(t, "it.persist")
	c := cache.New(store)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, c.Set(ctx, "profile", []byte(`{"id":1}`), expiry))

	// A second store over the same server and namespace sees the entry.
	second, err := NewStore(store.config)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, store.Close())

	entry, err := cache.New(second).Get(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":1}`), entry.Payload)
}

func TestRealRedisResetKeepsOtherNamespaces(t *testing.T) {
	store, ctx := setupRealRedis(t, "it.reset")
	defer store.Close()

	otherCfg := *store.config
	otherCfg.Namespace = "it.other"
	other, err := NewStore(&otherCfg)
	require.NoError(t, err)
	defer other.Close()

	for i := range 1200 {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, other.Set(ctx, "k0", []byte("keep"), time.Minute))

	require.NoError(t, store.Reset(ctx))

	_, err = store.Get(ctx, "k0")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = store.Get(ctx, "k1199")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	kept, err := other.Get(ctx, "k0")
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), kept)
}

func TestRealRedisConcurrentWriters(t *testing.T) {
	store, ctx := setupRealRedis(t, "it.concurrent")
	defer store.Close()

	c := cache.New(store)
	const workers = 32

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("writer-%d", worker))
			assert.NoError(t, c.Set(ctx, "shared", payload, time.Now().Add(time.Minute)))
		}(i)
	}
	wg.Wait()

	// Last writer wins; whichever it was, the snapshot is one writer's payload.
	entry, err := c.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Regexp(t, `^writer-\d+$`, string(entry.Payload))
}

func TestRealRedisContextCancellation(t *testing.T) {
	store, setupCtx := setupRealRedis(t, "it.cancel")
	defer store.Close()

	ctx, cancel := context.WithCancel(setupCtx)
	cancel()

	_, err := store.Get(ctx, "any")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}
