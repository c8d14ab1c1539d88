// Package memory provides an in-process cache.Store.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/cache/internal/tracking"
)

// Store is a mutex-guarded map keyed by "<namespace>:<key>". Stores created
// over one shared Backing with different namespaces do not see each other's keys.
type Store struct {
	namespace string
	backing   *Backing
	closed    atomic.Bool
}

// Backing holds the entries. Share one Backing between Stores to model a
// single process-wide cache split into namespaces.
type Backing struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBacking creates empty storage.
func NewBacking() *Backing {
	return &Backing{data: make(map[string][]byte)}
}

// New creates a Store with its own Backing.
func New(namespace string) *Store {
	return NewShared(namespace, NewBacking())
}

// NewShared creates a Store over an existing Backing.
func NewShared(namespace string, backing *Backing) *Store {
	if namespace == "" {
		namespace = cache.DefaultNamespace
	}
	return &Store{namespace: namespace, backing: backing}
}

var _ cache.Store = (*Store)(nil)

func (s *Store) key(k string) string {
	return s.namespace + ":" + k
}

// Get returns a copy of the stored bytes or cache.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	if s.closed.Load() {
		return nil, cache.ErrClosed
	}

	s.backing.mu.RLock()
	v, ok := s.backing.data[s.key(key)]
	s.backing.mu.RUnlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpGet, time.Since(start), ok, nil, s.namespace)
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value. ttl is ignored; freshness is enforced by cache.Cache.
func (s *Store) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	start := time.Now()
	if s.closed.Load() {
		return cache.ErrClosed
	}

	s.backing.mu.Lock()
	s.backing.data[s.key(key)] = append([]byte(nil), value...)
	s.backing.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpSet, time.Since(start), false, nil, s.namespace)
	return nil
}

// Delete removes key; missing keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	if s.closed.Load() {
		return cache.ErrClosed
	}

	s.backing.mu.Lock()
	delete(s.backing.data, s.key(key))
	s.backing.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpDelete, time.Since(start), false, nil, s.namespace)
	return nil
}

// Reset removes every key under this store's namespace.
func (s *Store) Reset(ctx context.Context) error {
	start := time.Now()
	if s.closed.Load() {
		return cache.ErrClosed
	}

	prefix := s.namespace + ":"
	s.backing.mu.Lock()
	for k := range s.backing.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.backing.data, k)
		}
	}
	s.backing.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpReset, time.Since(start), false, nil, s.namespace)
	return nil
}

// Len reports the number of keys in this store's namespace.
func (s *Store) Len() int {
	prefix := s.namespace + ":"
	s.backing.mu.RLock()
	defer s.backing.mu.RUnlock()

	n := 0
	for k := range s.backing.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// Close marks the store closed. Entries stay in the Backing.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Labels implements cache.Labeled.
func (s *Store) Labels() (system, namespace string) {
	return tracking.SystemMemory, s.namespace
}
