package tracking

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func setupTestProviders(t *testing.T) (*sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	ResetForTesting()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
		ResetForTesting()
	})
	return reader, exporter
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != instrumentationName {
			continue
		}
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func attrValue(set attribute.Set, key string) (string, bool) {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "", false
	}
	return v.Emit(), true
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://user:pw@api.example.com/items?x=1", http.NoBody)
	require.NoError(t, err)
	return req
}

func TestRequestSpanAndDuration(t *testing.T) {
	reader, exporter := setupTestProviders(t)
	req := newRequest(t)

	ctx, span := StartRequest(context.Background(), req, "GET - https://api.example.com/items", 1)
	assert.True(t, oteltrace.SpanFromContext(ctx).SpanContext().IsValid())
	EndRequest(ctx, span, req.Method, "api.example.com", http.StatusOK, 40*time.Millisecond, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "HTTP GET", s.Name)
	assert.Equal(t, oteltrace.SpanKindClient, s.SpanKind)
	assert.Equal(t, codes.Unset, s.Status.Code)

	attrs := attribute.NewSet(s.Attributes...)
	url, _ := attrValue(attrs, "url.full")
	assert.NotContains(t, url, "pw")
	id, _ := attrValue(attrs, attrRequestID)
	assert.Equal(t, "GET - https://api.example.com/items", id)
	status, _ := attrValue(attrs, "http.response.status_code")
	assert.Equal(t, "200", status)

	m := collect(t, reader, metricRequestDuration)
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 0.04, hist.DataPoints[0].Sum, 1e-9)
	_, hasErr := attrValue(hist.DataPoints[0].Attributes, "error.type")
	assert.False(t, hasErr)
}

func TestRequestErrorsMarkSpan(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		err       error
		wantError string
	}{
		{name: "timeout", err: context.DeadlineExceeded, wantError: "timeout"},
		{name: "canceled", err: context.Canceled, wantError: "canceled"},
		{name: "transport", err: errors.New("connection refused"), wantError: "transport"},
		{name: "http status", status: http.StatusBadGateway, wantError: "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, exporter := setupTestProviders(t)
			req := newRequest(t)

			ctx, span := StartRequest(context.Background(), req, "id", 2)
			EndRequest(ctx, span, req.Method, "api.example.com", tt.status, time.Millisecond, tt.err)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Error, spans[0].Status.Code)

			m := collect(t, reader, metricRequestDuration)
			require.NotNil(t, m)
			hist := m.Data.(metricdata.Histogram[float64])
			got, _ := attrValue(hist.DataPoints[0].Attributes, "error.type")
			assert.Equal(t, tt.wantError, got)
		})
	}
}

func TestCounters(t *testing.T) {
	reader, _ := setupTestProviders(t)
	ctx := context.Background()

	RecordAuthRetry(ctx, true)
	RecordAuthRetry(ctx, false)
	RecordAuthRetry(ctx, true)
	RecordCacheResult(ctx, CacheServed)
	RecordCacheResult(ctx, CacheFallback)
	RecordCacheResult(ctx, CacheServed)

	sums := func(name, key string) map[string]int64 {
		m := collect(t, reader, name)
		require.NotNil(t, m, name)
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		out := map[string]int64{}
		for _, dp := range sum.DataPoints {
			v, _ := attrValue(dp.Attributes, key)
			out[v] = dp.Value
		}
		return out
	}

	assert.Equal(t, map[string]int64{"refreshed": 2, "failed": 1}, sums(metricAuthRetries, attrAuthOutcome))
	assert.Equal(t, map[string]int64{CacheServed: 2, CacheFallback: 1}, sums(metricCacheResults, attrCacheOutcome))
}

func TestResetForTesting(t *testing.T) {
	setupTestProviders(t)

	RecordCacheResult(context.Background(), CacheEmpty)
	assert.True(t, IsInitialized())

	ResetForTesting()
	assert.False(t, IsInitialized())
}
