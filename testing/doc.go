// Package testing holds shared test infrastructure for netkit packages.
//
// The containers subpackage starts throwaway backing services with
// testcontainers-go for integration tests, which run under the
// "integration" build tag:
//
//	go test -tags=integration ./cache/redis/...
//
// In-memory doubles live next to the code they replace: cache/testing for
// cache stores and observability/testing for telemetry providers.
package testing
