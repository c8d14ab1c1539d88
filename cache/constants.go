package cache

import "time"

// DefaultNamespace scopes response cache keys when none is configured.
const DefaultNamespace = "netkit.cache"

// Test-Specific Time Durations
//
// These constants are used exclusively in test files to simulate timing behaviors
// without hardcoding magic numbers.

const (
	// TestShortTTL is a very short TTL for testing expiration behavior.
	TestShortTTL = 100 * time.Millisecond

	// TestMediumTTL is a moderate TTL for test data that should persist during test execution.
	TestMediumTTL = 5 * time.Second

	// TestLongTTL is a long TTL for test data that should not expire during tests.
	TestLongTTL = 10 * time.Minute
)
