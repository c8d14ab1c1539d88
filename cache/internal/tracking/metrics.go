package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Meter name for cache metrics instrumentation
	cacheMeterName = "go-netkit/cache"

	// Using db.client.operation.duration as Redis is a database; the memory
	// backend reports under the same instrument with a different system name.
	metricCacheOperationDuration = "db.client.operation.duration" // Histogram in seconds

	metricCacheHit      = "cache.hit"      // Counter for cache hits
	metricCacheMiss     = "cache.miss"     // Counter for cache misses
	metricCacheEviction = "cache.eviction" // Counter for stale entries removed on read

	// Attribute keys per OTel semantic conventions
	attrDBSystem       = "db.system.name"
	attrDBOperation    = "db.operation.name"
	attrDBNamespace    = "db.namespace"
	attrErrorType      = "error.type"
	attrCacheHitStatus = "cache.hit"
)

// Cache systems
const (
	SystemMemory = "memory"
	SystemRedis  = "redis"
)

// Cache operation names
const (
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpReset  = "reset"
	OpHealth = "ping"
)

var (
	cacheMeter    metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	cacheOperationDuration metric.Float64Histogram
	cacheHitCounter        metric.Int64Counter
	cacheMissCounter       metric.Int64Counter
	cacheEvictionCounter   metric.Int64Counter
)

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize cache metric %s: %v\n", metricName, err)
	}
}

func initCacheMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if cacheMeter != nil {
		return
	}

	cacheMeter = otel.Meter(cacheMeterName)

	var err error

	cacheOperationDuration, err = cacheMeter.Float64Histogram(
		metricCacheOperationDuration,
		metric.WithDescription("Duration of response cache store operations"),
		metric.WithUnit("s"),
	)
	logMetricError(metricCacheOperationDuration, err)

	cacheHitCounter, err = cacheMeter.Int64Counter(
		metricCacheHit,
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	logMetricError(metricCacheHit, err)

	cacheMissCounter, err = cacheMeter.Int64Counter(
		metricCacheMiss,
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	logMetricError(metricCacheMiss, err)

	cacheEvictionCounter, err = cacheMeter.Int64Counter(
		metricCacheEviction,
		metric.WithDescription("Number of expired entries evicted on read"),
		metric.WithUnit("{entry}"),
	)
	logMetricError(metricCacheEviction, err)

	metricsInited = true
}

func ensureCacheMeterInitialized() {
	meterOnce.Do(initCacheMeter)
}

// RecordCacheOperation records the duration of a store operation and, for
// lookups, a hit or miss. namespace is optional.
func RecordCacheOperation(ctx context.Context, system, operation string, duration time.Duration, hit bool, err error, namespace string) {
	ensureCacheMeterInitialized()

	attrs := baseAttributes(system, namespace)
	attrs = append(attrs, attribute.String(attrDBOperation, operation))

	if operation == OpGet {
		attrs = append(attrs, attribute.Bool(attrCacheHitStatus, hit))
	}
	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyError(err)))
	}

	if cacheOperationDuration != nil {
		cacheOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if operation != OpGet || err != nil {
		return
	}
	if hit {
		if cacheHitCounter != nil {
			cacheHitCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	} else if cacheMissCounter != nil {
		cacheMissCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordEviction counts an entry dropped because its expiry had passed.
func RecordEviction(ctx context.Context, system, namespace string) {
	ensureCacheMeterInitialized()

	if cacheEvictionCounter != nil {
		cacheEvictionCounter.Add(ctx, 1, metric.WithAttributes(baseAttributes(system, namespace)...))
	}
}

func baseAttributes(system, namespace string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(attrDBSystem, system)}
	if namespace != "" {
		attrs = append(attrs, attribute.String(attrDBNamespace, namespace))
	}
	return attrs
}

// classifyError returns an error classification string for metrics.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "closed"):
		return "closed"
	default:
		return "error"
	}
}

// IsInitialized returns true if cache metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	cacheMeter = nil
	cacheOperationDuration = nil
	cacheHitCounter = nil
	cacheMissCounter = nil
	cacheEvictionCounter = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
