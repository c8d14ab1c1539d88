package trace

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InjectMode controls how InjectIntoHeaders treats headers already present.
type InjectMode int

const (
	// InjectPreserve keeps caller-supplied trace headers and only fills gaps.
	InjectPreserve InjectMode = iota
	// InjectOverwrite replaces trace headers with values from the context.
	InjectOverwrite
)

// InjectOptions configures outbound trace header propagation.
type InjectOptions struct {
	Mode InjectMode
	// RequestIDHeader names the request ID header. Defaults to X-Request-ID.
	RequestIDHeader string
	// GenerateParent creates a fresh traceparent when neither the headers nor
	// the context carry one.
	GenerateParent bool
}

// InjectIntoHeaders writes request ID, traceparent and tracestate headers for an
// outbound request. Sources, in order: existing headers (preserve mode), values
// stored on ctx, the active OpenTelemetry span, then generated values.
func InjectIntoHeaders(ctx context.Context, h nethttp.Header, opts InjectOptions) {
	idHeader := opts.RequestIDHeader
	if idHeader == "" {
		idHeader = HeaderXRequestID
	}
	preserve := opts.Mode == InjectPreserve

	parent := h.Get(HeaderTraceParent)
	if parent == "" || !preserve {
		if tp := parentFor(ctx, opts.GenerateParent); tp != "" {
			parent = tp
			h.Set(HeaderTraceParent, tp)
		}
	}

	if h.Get(idHeader) == "" || !preserve {
		h.Set(idHeader, requestIDFor(ctx, parent))
	}

	if h.Get(HeaderTraceState) == "" || !preserve {
		if ts, ok := StateFromContext(ctx); ok {
			h.Set(HeaderTraceState, ts)
		}
	}
}

func parentFor(ctx context.Context, generate bool) string {
	if tp, ok := ParentFromContext(ctx); ok {
		return tp
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		return FormatTraceParent(sc)
	}
	if generate {
		return GenerateTraceParent()
	}
	return ""
}

func requestIDFor(ctx context.Context, parent string) string {
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	if id := TraceIDFromParent(parent); id != "" {
		return id
	}
	return uuid.New().String()
}

// FormatTraceParent renders an OpenTelemetry span context as a W3C traceparent value.
func FormatTraceParent(sc oteltrace.SpanContext) string {
	flags := "00"
	if sc.IsSampled() {
		flags = "01"
	}
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + flags
}

// TraceIDFromParent extracts the 32-hex trace-id field of a traceparent value.
// It returns "" when the value is malformed.
func TraceIDFromParent(traceParent string) string {
	parts := strings.Split(traceParent, "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return ""
	}
	return strings.ToLower(parts[1])
}
