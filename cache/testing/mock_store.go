package testing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-netkit/cache"
)

// Operation names accepted by OperationCount.
const (
	OpGet    = "Get"
	OpSet    = "Set"
	OpDelete = "Delete"
	OpReset  = "Reset"
	OpClose  = "Close"
)

// MockStore is an in-memory cache.Store with failure injection and call
// tracking. It is safe for concurrent use.
type MockStore struct {
	namespace string

	mu   sync.RWMutex
	data map[string][]byte
	ttls map[string]time.Duration

	closed atomic.Bool

	delay       time.Duration
	getError    error
	setError    error
	deleteError error
	resetError  error
	closeError  error

	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	resetCalls  atomic.Int64
	closeCalls  atomic.Int64
}

var (
	_ cache.Store   = (*MockStore)(nil)
	_ cache.Labeled = (*MockStore)(nil)
)

// NewMockStore creates an empty MockStore in the "mock" namespace.
func NewMockStore() *MockStore {
	return &MockStore{
		namespace: "mock",
		data:      make(map[string][]byte),
		ttls:      make(map[string]time.Duration),
	}
}

// WithDelay stalls every operation; a cancelled context ends the stall early.
func (m *MockStore) WithDelay(delay time.Duration) *MockStore {
	m.delay = delay
	return m
}

// WithGetFailure makes Get return err.
func (m *MockStore) WithGetFailure(err error) *MockStore {
	m.getError = err
	return m
}

// WithSetFailure makes Set return err.
func (m *MockStore) WithSetFailure(err error) *MockStore {
	m.setError = err
	return m
}

// WithDeleteFailure makes Delete return err.
func (m *MockStore) WithDeleteFailure(err error) *MockStore {
	m.deleteError = err
	return m
}

// WithResetFailure makes Reset return err.
func (m *MockStore) WithResetFailure(err error) *MockStore {
	m.resetError = err
	return m
}

// WithCloseFailure makes Close return err without closing.
func (m *MockStore) WithCloseFailure(err error) *MockStore {
	m.closeError = err
	return m
}

func (m *MockStore) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get implements cache.Store.
func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.closed.Load() {
		return nil, cache.ErrClosed
	}
	if m.getError != nil {
		return nil, m.getError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements cache.Store. The ttl is recorded, not enforced.
func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.setError != nil {
		return m.setError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.ttls[key] = ttl
	return nil
}

// Delete implements cache.Store.
func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.deleteCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

// Reset implements cache.Store.
func (m *MockStore) Reset(ctx context.Context) error {
	m.resetCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.resetError != nil {
		return m.resetError
	}

	m.Clear()
	return nil
}

// Close implements cache.Store. A second Close returns cache.ErrClosed.
func (m *MockStore) Close() error {
	m.closeCalls.Add(1)
	if m.closeError != nil {
		return m.closeError
	}
	if !m.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return nil
}

// Labels implements cache.Labeled.
func (m *MockStore) Labels() (system, namespace string) {
	return "mock", m.namespace
}

// OperationCount returns how often op was called. Unknown names count zero.
func (m *MockStore) OperationCount(op string) int64 {
	switch op {
	case OpGet:
		return m.getCalls.Load()
	case OpSet:
		return m.setCalls.Load()
	case OpDelete:
		return m.deleteCalls.Load()
	case OpReset:
		return m.resetCalls.Load()
	case OpClose:
		return m.closeCalls.Load()
	default:
		return 0
	}
}

// ResetCounters zeroes every operation counter.
func (m *MockStore) ResetCounters() {
	for _, c := range []*atomic.Int64{&m.getCalls, &m.setCalls, &m.deleteCalls, &m.resetCalls, &m.closeCalls} {
		c.Store(0)
	}
}

// IsClosed reports whether Close succeeded.
func (m *MockStore) IsClosed() bool {
	return m.closed.Load()
}

// Has reports whether key is stored.
func (m *MockStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// TTL returns the ttl passed to the last Set of key.
func (m *MockStore) TTL(key string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ttl, ok := m.ttls[key]
	return ttl, ok
}

// Clear drops all entries without counting an operation.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	m.ttls = make(map[string]time.Duration)
}

// Keys returns the stored keys in sorted order.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dump renders the store for failure messages.
func (m *MockStore) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MockStore(%s) closed=%v\n", m.namespace, m.closed.Load())
	keys := m.Keys()
	if len(keys) == 0 {
		b.WriteString("  (empty)\n")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %d bytes ttl=%s\n", k, len(m.data[k]), m.ttls[k])
	}
	return b.String()
}
