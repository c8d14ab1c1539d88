// Package testing provides an in-memory cache.Store double for unit tests of
// code built on the response cache. MockStore records every call and can be
// told to fail or stall individual operations:
//
//	store := testing.NewMockStore().
//	    WithGetFailure(cache.ErrClosed).
//	    WithDelay(50 * time.Millisecond)
//	c := cache.New(store)
//
// Assertions cover operation counts and stored keys:
//
//	AssertOperationCount(t, store, OpGet, 1)
//	AssertKeyExists(t, store, "users")
//
// For behavior that depends on a real server, use cache/redis with the
// Redis testcontainer in testing/containers.
package testing
