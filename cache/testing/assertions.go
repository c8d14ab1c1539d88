package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/gaborage/go-netkit/cache"
)

// AssertCacheHit asserts that c returns a fresh entry for key.
func AssertCacheHit(t *testing.T, c *cache.Cache, key string) cache.Entry {
	t.Helper()

	entry, err := c.Get(context.Background(), key)
	if err != nil {
		t.Errorf("expected cache hit for key %q, got error: %v", key, err)
	}
	return entry
}

// AssertCacheMiss asserts that c has no fresh entry for key.
func AssertCacheMiss(t *testing.T, c *cache.Cache, key string) {
	t.Helper()

	_, err := c.Get(context.Background(), key)
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected cache miss (ErrNotFound) for key %q, got: %v", key, err)
	}
}

// AssertOperationCount asserts that op was called exactly expected times.
//
//	AssertOperationCount(t, store, OpGet, 1)
func AssertOperationCount(t *testing.T, store *MockStore, op string, expected int64) {
	t.Helper()

	if actual := store.OperationCount(op); actual != expected {
		t.Errorf("expected %d %s operations, got %d", expected, op, actual)
	}
}

// AssertNoOperations asserts that store was never touched.
func AssertNoOperations(t *testing.T, store *MockStore) {
	t.Helper()

	var total int64
	for _, op := range []string{OpGet, OpSet, OpDelete, OpReset, OpClose} {
		total += store.OperationCount(op)
	}
	if total > 0 {
		t.Errorf("expected no cache operations, found %d\n%s", total, store.Dump())
	}
}

// AssertKeyExists asserts that key is stored, fresh or not.
func AssertKeyExists(t *testing.T, store *MockStore, key string) {
	t.Helper()

	if !store.Has(key) {
		t.Errorf("expected key %q in cache storage\n%s", key, store.Dump())
	}
}

// AssertKeyNotExists asserts that key is not stored.
func AssertKeyNotExists(t *testing.T, store *MockStore, key string) {
	t.Helper()

	if store.Has(key) {
		t.Errorf("expected key %q to be absent from cache storage\n%s", key, store.Dump())
	}
}

// AssertCacheSize asserts the number of stored keys.
func AssertCacheSize(t *testing.T, store *MockStore, expected int) {
	t.Helper()

	if actual := len(store.Keys()); actual != expected {
		t.Errorf("expected %d cache entries, got %d\n%s", expected, actual, store.Dump())
	}
}
