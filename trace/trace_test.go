package trace

import (
	"context"
	nethttp "net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestContextValues(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-1")
	ctx = WithTraceParent(ctx, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	ctx = WithTraceState(ctx, "vendor=a:b,c=d")

	assert.Equal(t, Info{
		ID:     "req-1",
		Parent: "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01",
		State:  "vendor=a:b,c=d",
	}, FromContext(ctx))

	// later values replace earlier ones without touching the other fields
	ctx = WithTraceID(ctx, "req-2")
	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-2", id)
	state, ok := StateFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "vendor=a:b,c=d", state)
}

func TestContextValuesMissing(t *testing.T) {
	ctx := context.Background()
	_, ok := IDFromContext(ctx)
	assert.False(t, ok)
	_, ok = ParentFromContext(ctx)
	assert.False(t, ok)
	_, ok = StateFromContext(WithTraceState(ctx, ""))
	assert.False(t, ok)
}

func TestEnsureTraceID(t *testing.T) {
	assert.Equal(t, "existing", EnsureTraceID(WithTraceID(context.Background(), "existing")))

	got := EnsureTraceID(context.Background())
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9-]{36}$`), strings.ToLower(got))
}

func TestGenerateTraceParent_Format(t *testing.T) {
	tp := GenerateTraceParent()
	// Basic format checks
	assert.True(t, strings.HasPrefix(tp, "00-"))
	parts := strings.Split(tp, "-")
	require.Len(t, parts, 4)
	// version, trace-id, span-id, flags
	assert.Equal(t, 2, len(parts[0]))
	assert.Equal(t, 32, len(parts[1]))
	assert.Equal(t, 16, len(parts[2]))
	assert.Equal(t, 2, len(parts[3]))
	// Lowercase hex
	hexRe := regexp.MustCompile(`^[0-9a-f]+$`)
	assert.True(t, hexRe.MatchString(parts[1]))
	assert.True(t, hexRe.MatchString(parts[2]))
	assert.Equal(t, "01", parts[3])
}

func TestInjectIntoHeaders_PreservesExisting(t *testing.T) {
	headers := nethttp.Header{}
	headers.Set(HeaderXRequestID, "pre-xid")
	headers.Set(HeaderTraceParent, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	headers.Set(HeaderTraceState, "vendor=a:b")

	// Context has different values; preserve mode must not overwrite
	ctx := WithTraceID(context.Background(), "ctx-xid")
	ctx = WithTraceParent(ctx, "00-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-bbbbbbbbbbbbbbbb-01")
	ctx = WithTraceState(ctx, "vendor=ctx")

	InjectIntoHeaders(ctx, headers, InjectOptions{Mode: InjectPreserve})

	assert.Equal(t, "pre-xid", headers.Get(HeaderXRequestID))
	assert.Equal(t, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01", headers.Get(HeaderTraceParent))
	assert.Equal(t, "vendor=a:b", headers.Get(HeaderTraceState))
}

func TestInjectIntoHeaders_FillsMissing(t *testing.T) {
	headers := nethttp.Header{}

	ctx := WithTraceParent(context.Background(), "00-deadbeefdeadbeefdeadbeefdeadbeef-0123456789abcdef-01")
	ctx = WithTraceState(ctx, "vendor=x")

	InjectIntoHeaders(ctx, headers, InjectOptions{})

	assert.Equal(t, "00-deadbeefdeadbeefdeadbeefdeadbeef-0123456789abcdef-01", headers.Get(HeaderTraceParent))
	// X-Request-ID is derived from traceparent when missing
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeef", headers.Get(HeaderXRequestID))
	assert.Equal(t, "vendor=x", headers.Get(HeaderTraceState))
}

func TestInjectIntoHeaders_Overwrite(t *testing.T) {
	headers := nethttp.Header{}
	headers.Set("X-Correlation-ID", "stale")

	ctx := WithTraceID(context.Background(), "fresh")
	InjectIntoHeaders(ctx, headers, InjectOptions{Mode: InjectOverwrite, RequestIDHeader: "X-Correlation-ID"})

	assert.Equal(t, "fresh", headers.Get("X-Correlation-ID"))
	assert.Empty(t, headers.Get(HeaderXRequestID))
	assert.Empty(t, headers.Get(HeaderTraceParent), "no parent without a source or generation")
}

func TestInjectIntoHeaders_GeneratesParent(t *testing.T) {
	headers := nethttp.Header{}

	InjectIntoHeaders(context.Background(), headers, InjectOptions{GenerateParent: true})

	tp := headers.Get(HeaderTraceParent)
	require.NotEmpty(t, tp)
	assert.Equal(t, TraceIDFromParent(tp), headers.Get(HeaderXRequestID))
}

func TestInjectIntoHeaders_UsesActiveSpan(t *testing.T) {
	traceID, err := oteltrace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := oteltrace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: oteltrace.FlagsSampled,
	})
	ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)

	headers := nethttp.Header{}
	InjectIntoHeaders(ctx, headers, InjectOptions{})

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers.Get(HeaderTraceParent))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", headers.Get(HeaderXRequestID))
}

func TestTraceIDFromParent(t *testing.T) {
	assert.Equal(t, "", TraceIDFromParent("garbage"))
	assert.Equal(t, "", TraceIDFromParent("00-short-0123456789abcdef-01"))
	assert.Equal(t, "abcdefabcdefabcdefabcdefabcdefab", TraceIDFromParent("00-ABCDEFABCDEFABCDEFABCDEFABCDEFAB-0123456789abcdef-01"))
}
