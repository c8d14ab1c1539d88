// Package cache provides the time-bounded response cache used by the request
// execution engine. A Cache applies freshness rules on top of a Store backend
// (see cache/memory and cache/redis); entries carry their own expiry and are
// evicted lazily on the first read past it.
package cache

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Policy decides how a cached entry interacts with the network.
type Policy int

const (
	// PreferCache returns a fresh entry without dispatching; loads on a miss.
	PreferCache Policy = iota
	// CacheOnly never dispatches; a miss is an error.
	CacheOnly
	// PreferNetwork always dispatches and falls back to a fresh entry on failure.
	PreferNetwork
)

// String returns the policy name used in logs and CLI flags.
func (p Policy) String() string {
	switch p {
	case PreferCache:
		return "prefer-cache"
	case CacheOnly:
		return "cache-only"
	case PreferNetwork:
		return "prefer-network"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range []Policy{PreferCache, CacheOnly, PreferNetwork} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("cache: unknown policy %q", s)
}

// Offset is a relative lifetime. Components must be non-negative.
type Offset struct {
	Days    int
	Hours   int
	Minutes int
}

const maxOffsetMinutes = int64(math.MaxInt64 / int64(time.Minute))

// maxExpiry is the latest instant an entry envelope can store.
var maxExpiry = time.Unix(0, math.MaxInt64)

// Duration converts the offset, failing with ErrInvalidTTL for negative
// components or a lifetime time.Duration cannot represent.
func (o Offset) Duration() (time.Duration, error) {
	if o.Days < 0 || o.Hours < 0 || o.Minutes < 0 {
		return 0, fmt.Errorf("%w: negative offset %+v", ErrInvalidTTL, o)
	}

	total := int64(o.Minutes)
	for _, part := range []struct{ n, per int64 }{{int64(o.Hours), 60}, {int64(o.Days), 24 * 60}} {
		if part.n > (maxOffsetMinutes-total)/part.per {
			return 0, fmt.Errorf("%w: offset %+v overflows", ErrInvalidTTL, o)
		}
		total += part.n * part.per
	}
	if total > maxOffsetMinutes {
		return 0, fmt.Errorf("%w: offset %+v overflows", ErrInvalidTTL, o)
	}
	return time.Duration(total) * time.Minute, nil
}

// Key identifies a cache entry together with its policy and absolute expiry.
type Key struct {
	Name   string
	Policy Policy
	Expiry time.Time
}

// NewKey builds a Key expiring at now plus off.
func NewKey(name string, policy Policy, off Offset) (Key, error) {
	return NewKeyAt(name, policy, off, time.Now())
}

// NewKeyAt is NewKey with an explicit reference instant. Expiries later than
// the stored form can represent fail with ErrInvalidTTL.
func NewKeyAt(name string, policy Policy, off Offset, now time.Time) (Key, error) {
	if name == "" {
		return Key{}, ErrInvalidKey
	}
	d, err := off.Duration()
	if err != nil {
		return Key{}, err
	}
	expiry := now.Add(d)
	if expiry.After(maxExpiry) {
		return Key{}, fmt.Errorf("%w: expiry %s is past %s", ErrInvalidTTL, expiry.UTC().Format(time.RFC3339), maxExpiry.UTC().Format(time.RFC3339))
	}
	return Key{Name: name, Policy: policy, Expiry: expiry}, nil
}

// Entry is a cached payload with its absolute expiry.
type Entry struct {
	Payload []byte
	Expiry  time.Time
}

// FreshAt reports whether the entry is still usable at now.
func (e Entry) FreshAt(now time.Time) bool {
	return now.Before(e.Expiry)
}

// Store is a namespaced byte store. Implementations must be safe for
// concurrent use. Get returns ErrNotFound for a missing key. ttl is advisory:
// backends with native expiry may drop the value once it elapses, and a
// non-positive ttl may drop it immediately.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Reset removes every key in the store's namespace and nothing else.
	Reset(ctx context.Context) error
	Close() error
}

// Labeled is implemented by stores that report metrics labels.
type Labeled interface {
	Labels() (system, namespace string)
}
