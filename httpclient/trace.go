package httpclient

import (
	"context"
	nethttp "net/http"

	"github.com/gaborage/go-netkit/trace"
)

// NewTraceIDInterceptor returns a request interceptor that sets X-Request-ID
// from the context trace ID, generating one when absent. An existing header wins.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(trace.HeaderXRequestID)
}

// NewTraceIDInterceptorFor is NewTraceIDInterceptor with a custom header name.
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	return NewTracePropagationInterceptor(trace.InjectOptions{
		Mode:            trace.InjectPreserve,
		RequestIDHeader: header,
	})
}

// NewTracePropagationInterceptor writes request ID and W3C trace context
// headers per opts.
func NewTracePropagationInterceptor(opts trace.InjectOptions) RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		trace.InjectIntoHeaders(ctx, req.Header, opts)
		return nil
	}
}
