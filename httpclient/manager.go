package httpclient

import (
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/config"
	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

const (
	// DefaultTimeout is the request timeout used when neither the descriptor
	// nor the Manager configure one.
	DefaultTimeout = request.DefaultTimeout

	// DefaultMaxPayloadLogBytes caps logged body previews.
	DefaultMaxPayloadLogBytes = 1024
)

// Manager executes request descriptors. It owns the response cache, the
// in-flight registry and the transport; one Manager is safe for concurrent use.
type Manager struct {
	transport            Transport
	downloadTransport    Transport
	cache                *cache.Cache
	registry             *Registry
	decoder              Decoder
	logger               logger.Logger
	config               *Config
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            int64
	now                  func() time.Time
}

// Builder provides a fluent interface for configuring a Manager
type Builder struct {
	config            *Config
	logger            logger.Logger
	transport         Transport
	downloadTransport Transport
	cache             *cache.Cache
	registry          *Registry
	decoder           Decoder
	now               func() time.Time
}

// NewBuilder creates a new Manager builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			Timeout:              DefaultTimeout,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
			MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		},
		logger: log,
	}
}

// NewBuilderFromConfig seeds a Builder with the client section of cfg.
func NewBuilderFromConfig(log logger.Logger, cfg config.ClientConfig) *Builder {
	b := NewBuilder(log).
		WithTimeout(cfg.Timeout).
		WithDownloadTimeout(cfg.DownloadTimeout).
		WithWarningThreshold(cfg.WarningThreshold).
		WithUserAgent(cfg.UserAgent)
	if cfg.TraceHeader != "" {
		b.WithTraceHeader(cfg.TraceHeader)
	}
	return b
}

// WithTimeout sets the default request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.config.Timeout = timeout
	}
	return b
}

// WithDownloadTimeout sets the timeout for downloads
func (b *Builder) WithDownloadTimeout(timeout time.Duration) *Builder {
	b.config.DownloadTimeout = timeout
	return b
}

// WithWarningThreshold sets the slow-success threshold for descriptors that leave it unset.
func (b *Builder) WithWarningThreshold(d time.Duration) *Builder {
	b.config.WarningThreshold = d
	return b
}

// WithTransport replaces the transport used for data requests
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithDownloadTransport replaces the transport used for downloads
func (b *Builder) WithDownloadTransport(t Transport) *Builder {
	b.downloadTransport = t
	return b
}

// WithCache attaches the response cache
func (b *Builder) WithCache(c *cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithRegistry shares an in-flight registry between Managers
func (b *Builder) WithRegistry(r *Registry) *Builder {
	b.registry = r
	return b
}

// WithDecoder replaces the JSON decoder used by ResponseAs
func (b *Builder) WithDecoder(d Decoder) *Builder {
	b.decoder = d
	return b
}

// WithClock replaces time.Now for latency measurement
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithDefaultHeader adds a header sent with every request unless the request sets it
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithUserAgent sets the User-Agent for requests that carry none
func (b *Builder) WithUserAgent(ua string) *Builder {
	b.config.UserAgent = ua
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithTraceHeader propagates the context trace ID under header
func (b *Builder) WithTraceHeader(header string) *Builder {
	return b.WithRequestInterceptor(NewTraceIDInterceptorFor(header))
}

// WithBoundary fixes the multipart boundary
func (b *Builder) WithBoundary(boundary string) *Builder {
	b.config.Boundary = boundary
	return b
}

// WithPreflightRefresh refreshes invalid credentials before the first dispatch
func (b *Builder) WithPreflightRefresh(enabled bool) *Builder {
	b.config.PreflightRefresh = enabled
	return b
}

// WithLogPayloads enables debug logging of headers and bodies, capped at maxBytes
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// Build creates the Manager with the configured options
func (b *Builder) Build() *Manager {
	m := &Manager{
		transport:            b.transport,
		downloadTransport:    b.downloadTransport,
		cache:                b.cache,
		registry:             b.registry,
		decoder:              b.decoder,
		logger:               b.logger,
		config:               b.config,
		requestInterceptors:  b.config.RequestInterceptors,
		responseInterceptors: b.config.ResponseInterceptors,
		now:                  b.now,
	}
	if m.transport == nil {
		m.transport = &nethttp.Client{}
	}
	if m.downloadTransport == nil {
		m.downloadTransport = m.transport
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.decoder == nil {
		m.decoder = JSONDecoder
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// NewInstrumentedTransport returns an *http.Client whose round trips emit
// otelhttp client spans and propagate the active trace context.
func NewInstrumentedTransport() *nethttp.Client {
	return &nethttp.Client{Transport: otelhttp.NewTransport(nethttp.DefaultTransport)}
}

// Registry returns the in-flight registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Cache returns the response cache, nil when none is attached
func (m *Manager) Cache() *cache.Cache {
	return m.cache
}

func (m *Manager) buildOptions() request.BuildOptions {
	return request.BuildOptions{
		Boundary:       m.config.Boundary,
		DefaultTimeout: m.config.Timeout,
		Logger:         m.logger,
	}
}

func (m *Manager) warningThreshold(d request.Descriptor) time.Duration {
	if d.WarningThreshold > 0 {
		return d.WarningThreshold
	}
	if m.config.WarningThreshold > 0 {
		return m.config.WarningThreshold
	}
	return request.DefaultWarningThreshold
}
