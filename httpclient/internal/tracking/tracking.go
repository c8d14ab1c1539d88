// Package tracking records OpenTelemetry spans and metrics for request
// executions.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "go-netkit/httpclient"

	metricRequestDuration = "http.client.request.duration"
	metricAuthRetries     = "netkit.client.auth.retries"
	metricCacheResults    = "netkit.client.cache.results"

	attrRequestID    = "netkit.request.id"
	attrAttempt      = "netkit.request.attempt"
	attrCacheOutcome = "netkit.cache.outcome"
	attrAuthOutcome  = "netkit.auth.outcome"
)

// Cache outcomes reported by RecordCacheResult.
const (
	CacheServed   = "served"
	CacheEmpty    = "empty"
	CacheFallback = "fallback"
	CacheStored   = "stored"
)

var (
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	requestDuration metric.Float64Histogram
	authRetries     metric.Int64Counter
	cacheResults    metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize client metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter := otel.Meter(instrumentationName)
	var err error

	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of outbound HTTP requests"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	authRetries, err = meter.Int64Counter(
		metricAuthRetries,
		metric.WithDescription("Credential refresh cycles triggered by a 401"),
		metric.WithUnit("{refresh}"),
	)
	logMetricError(metricAuthRetries, err)

	cacheResults, err = meter.Int64Counter(
		metricCacheResults,
		metric.WithDescription("Response cache outcomes by kind"),
		metric.WithUnit("{result}"),
	)
	logMetricError(metricCacheResults, err)

	metricsInited = true
}

func ensureMeter() {
	meterOnce.Do(initMeter)
}

// StartRequest starts a client span for one dispatch of req.
func StartRequest(ctx context.Context, req *http.Request, id string, attempt int) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL.Redacted()),
			semconv.ServerAddress(req.URL.Hostname()),
			attribute.String(attrRequestID, id),
			attribute.Int(attrAttempt, attempt),
		),
	)
}

// EndRequest finishes span and records the request duration. status is 0
// when no response arrived.
func EndRequest(ctx context.Context, span trace.Span, method, host string, status int, elapsed time.Duration, err error) {
	ensureMeter()

	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(method),
		semconv.ServerAddress(host),
	}
	if status > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(status))
	}

	switch {
	case err != nil:
		attrs = append(attrs, semconv.ErrorTypeKey.String(classifyError(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 400:
		attrs = append(attrs, semconv.ErrorTypeKey.String(strconv.Itoa(status)))
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	span.End()

	if requestDuration != nil {
		requestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordAuthRetry counts one refresh cycle; succeeded tells whether a replay follows.
func RecordAuthRetry(ctx context.Context, succeeded bool) {
	ensureMeter()

	outcome := "refreshed"
	if !succeeded {
		outcome = "failed"
	}
	if authRetries != nil {
		authRetries.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAuthOutcome, outcome)))
	}
}

// RecordCacheResult counts a response cache outcome.
func RecordCacheResult(ctx context.Context, outcome string) {
	ensureMeter()

	if cacheResults != nil {
		cacheResults.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCacheOutcome, outcome)))
	}
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

// IsInitialized returns true if client metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting drops the instruments so the next call binds to the
// current global MeterProvider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	requestDuration = nil
	authRetries = nil
	cacheResults = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
