// Package trace carries request identifiers on a context and copies them onto
// outbound requests.
package trace

import (
	"context"
	crand "crypto/rand"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	HeaderXRequestID  = "X-Request-ID"
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

type infoKey struct{}

// Info is the set of identifiers attached to a context. Empty fields are unset.
type Info struct {
	ID     string
	Parent string
	State  string
}

// FromContext returns the identifiers stored on ctx.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(infoKey{}).(Info)
	return info
}

func withInfo(ctx context.Context, update func(*Info)) context.Context {
	info := FromContext(ctx)
	update(&info)
	return context.WithValue(ctx, infoKey{}, info)
}

// WithTraceID stores the request ID sent with outbound calls.
func WithTraceID(ctx context.Context, id string) context.Context {
	return withInfo(ctx, func(i *Info) { i.ID = id })
}

// WithTraceParent stores a W3C traceparent value.
func WithTraceParent(ctx context.Context, parent string) context.Context {
	return withInfo(ctx, func(i *Info) { i.Parent = parent })
}

// WithTraceState stores a W3C tracestate value.
func WithTraceState(ctx context.Context, state string) context.Context {
	return withInfo(ctx, func(i *Info) { i.State = state })
}

func IDFromContext(ctx context.Context) (string, bool) {
	id := FromContext(ctx).ID
	return id, id != ""
}

func ParentFromContext(ctx context.Context) (string, bool) {
	p := FromContext(ctx).Parent
	return p, p != ""
}

func StateFromContext(ctx context.Context) (string, bool) {
	s := FromContext(ctx).State
	return s, s != ""
}

// EnsureTraceID returns the stored request ID or a new UUID.
func EnsureTraceID(ctx context.Context) string {
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// GenerateTraceParent returns a sampled traceparent with random, non-zero IDs.
func GenerateTraceParent() string {
	var tid oteltrace.TraceID
	var sid oteltrace.SpanID
	_, _ = crand.Read(tid[:])
	_, _ = crand.Read(sid[:])
	if !tid.IsValid() {
		tid[len(tid)-1] = 1
	}
	if !sid.IsValid() {
		sid[len(sid)-1] = 1
	}
	return FormatTraceParent(oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: oteltrace.FlagsSampled,
	}))
}
