package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-netkit/cache/internal/tracking"
)

// Cache applies expiry rules on top of a Store. It is safe for concurrent use;
// concurrent writers to one key resolve last-writer-wins.
type Cache struct {
	store Store
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now as the freshness reference.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps store with freshness semantics.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry stored under key. A missing, expired or unreadable
// entry yields ErrNotFound; expired and unreadable entries are deleted first.
func (c *Cache) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		c.evict(ctx, key)
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}

	if !entry.FreshAt(c.now()) {
		c.evict(ctx, key)
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Set stores payload under key until expiry, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key string, payload []byte, expiry time.Time) error {
	raw, err := encodeEntry(Entry{Payload: payload, Expiry: expiry})
	if err != nil {
		return NewOperationError(tracking.OpSet, key, err)
	}
	return c.store.Set(ctx, key, raw, expiry.Sub(c.now()))
}

// Put stores payload under k using the key's own expiry.
func (c *Cache) Put(ctx context.Context, k Key, payload []byte) error {
	return c.Set(ctx, k.Name, payload, k.Expiry)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.store.Delete(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ResetAll removes every entry in the store's namespace.
func (c *Cache) ResetAll(ctx context.Context) error {
	return c.store.Reset(ctx)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) evict(ctx context.Context, key string) {
	// eviction failures leave a stale value that the next read retries
	if err := c.store.Delete(ctx, key); err != nil {
		return
	}
	system, namespace := "unknown", ""
	if l, ok := c.store.(Labeled); ok {
		system, namespace = l.Labels()
	}
	tracking.RecordEviction(ctx, system, namespace)
}
