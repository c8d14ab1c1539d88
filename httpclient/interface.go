package httpclient

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-netkit/request"
)

// Transport sends one wire request. *http.Client satisfies it.
type Transport interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(req *nethttp.Request) (*nethttp.Response, error)

// Do implements Transport.
func (f TransportFunc) Do(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}

// Response is the outcome of a request. FromCache marks bodies served from
// the response cache; with a non-2xx StatusCode it is a fallback after a
// failed request.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
	FromCache  bool
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	CallCount   int64
	// Attempts is the number of dispatches: 0 for cache hits, 2 after a
	// credential refresh.
	Attempts int
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Decoder turns a response body into v.
type Decoder func(data []byte, v any) error

// JSONDecoder is the default Decoder.
func JSONDecoder(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Config holds the Manager configuration
type Config struct {
	// Timeout applies to requests whose descriptor sets none.
	Timeout time.Duration
	// DownloadTimeout bounds downloads; zero falls back to Timeout.
	DownloadTimeout time.Duration
	// WarningThreshold applies to descriptors whose threshold is zero.
	WarningThreshold time.Duration

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string
	UserAgent            string

	// Boundary fixes the multipart boundary; empty generates one per request.
	Boundary string
	// PreflightRefresh refreshes invalid credentials before the first dispatch.
	PreflightRefresh bool
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
}

// Downloader is the download half of a Manager, for callers that only fetch files.
type Downloader interface {
	Download(ctx context.Context, d request.Descriptor, destination string, opts DownloadOptions) (int64, error)
	DownloadURL(ctx context.Context, rawURL, destination string, opts DownloadOptions) (int64, error)
}
