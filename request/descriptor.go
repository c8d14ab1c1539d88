// Package request describes outbound HTTP requests declaratively and builds
// them into *http.Request values.
//
// A Descriptor is created once with New and never modified; the execution
// engine rebuilds the wire request from it on every attempt, so a replay
// after a credential refresh sends exactly the same request with fresh
// credentials.
package request

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/cache"
)

// Method is an HTTP method.
type Method string

// Supported methods.
const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// CachePolicy controls the Cache-Control header sent with the request.
type CachePolicy int

const (
	// ReloadIgnoringLocalCache asks intermediaries to revalidate; a server may
	// then answer 304, which the engine treats as a failure.
	ReloadIgnoringLocalCache CachePolicy = iota
	// UseProtocolCachePolicy leaves caching to the HTTP defaults.
	UseProtocolCachePolicy
)

// Defaults applied by New.
const (
	DefaultScheme           = "https"
	DefaultWarningThreshold = 2 * time.Second
)

// Descriptor is an immutable description of one request.
type Descriptor struct {
	Scheme string `validate:"required,oneof=http https"`
	Host   string `validate:"required,hostname_rfc1123|ip"`
	Port   int    `validate:"gte=0,lte=65535"`
	Path   string
	Method Method `validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`

	Headers       map[string]string
	URLParameters map[string]string
	Parameters    Parameters
	Files         []File

	Credentials auth.Provider
	CacheKey    *cache.Key
	CachePolicy CachePolicy

	CanRefreshCredentials bool
	WarningThreshold      time.Duration `validate:"gte=0"`
	Timeout               time.Duration `validate:"gte=0"`

	// ID replaces the method and URL as the request's identifier.
	ID string
	// MockFile is the payload served by the engine's mock mode.
	MockFile string
}

// Option configures a Descriptor in New.
type Option func(*Descriptor)

// New creates a Descriptor for method on host. Callers' maps and slices are
// copied.
func New(method Method, host, path string, opts ...Option) Descriptor {
	d := Descriptor{
		Scheme:                DefaultScheme,
		Host:                  host,
		Path:                  path,
		Method:                method,
		CanRefreshCredentials: true,
		WarningThreshold:      DefaultWarningThreshold,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// FromURL creates a Descriptor from an absolute URL. Query parameters become
// URLParameters; repeated keys keep their first value.
func FromURL(method Method, rawURL string, opts ...Option) (Descriptor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Descriptor{}, newBuildError(KindInvalidURL, "cannot parse URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Descriptor{}, newBuildError(KindInvalidURL, fmt.Sprintf("URL %q is not absolute", rawURL), nil)
	}

	base := []Option{WithScheme(u.Scheme)}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Descriptor{}, newBuildError(KindInvalidURL, fmt.Sprintf("invalid port %q", p), err)
		}
		base = append(base, WithPort(port))
	}
	for key, values := range u.Query() {
		base = append(base, WithQuery(key, values[0]))
	}
	return New(method, u.Hostname(), u.Path, append(base, opts...)...), nil
}

// WithScheme sets the URL scheme.
func WithScheme(scheme string) Option {
	return func(d *Descriptor) { d.Scheme = scheme }
}

// WithPort sets an explicit port.
func WithPort(port int) Option {
	return func(d *Descriptor) { d.Port = port }
}

// WithHeader adds one header. Later values for the same key win.
func WithHeader(key, value string) Option {
	return func(d *Descriptor) {
		if d.Headers == nil {
			d.Headers = make(map[string]string)
		}
		d.Headers[key] = value
	}
}

// WithHeaders merges headers into the descriptor.
func WithHeaders(headers map[string]string) Option {
	return func(d *Descriptor) {
		if d.Headers == nil {
			d.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(d.Headers, headers)
	}
}

// WithQuery adds one URL query parameter.
func WithQuery(key, value string) Option {
	return func(d *Descriptor) {
		if d.URLParameters == nil {
			d.URLParameters = make(map[string]string)
		}
		d.URLParameters[key] = value
	}
}

// WithParameters sets the body.
func WithParameters(p Parameters) Option {
	return func(d *Descriptor) { d.Parameters = p }
}

// WithFiles appends multipart files.
func WithFiles(files ...File) Option {
	return func(d *Descriptor) { d.Files = append(d.Files, files...) }
}

// WithCredentials sets the credential provider.
func WithCredentials(p auth.Provider) Option {
	return func(d *Descriptor) { d.Credentials = p }
}

// WithCacheKey enables the response cache for this request.
func WithCacheKey(k cache.Key) Option {
	return func(d *Descriptor) { d.CacheKey = &k }
}

// WithCachePolicy sets the HTTP cache policy.
func WithCachePolicy(p CachePolicy) Option {
	return func(d *Descriptor) { d.CachePolicy = p }
}

// WithoutCredentialRefresh disables the refresh-and-replay after a 401.
func WithoutCredentialRefresh() Option {
	return func(d *Descriptor) { d.CanRefreshCredentials = false }
}

// WithWarningThreshold sets the latency above which success is logged as slow.
func WithWarningThreshold(threshold time.Duration) Option {
	return func(d *Descriptor) { d.WarningThreshold = threshold }
}

// WithTimeout overrides the engine's default timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Descriptor) { d.Timeout = timeout }
}

// WithID sets the identifier used for logging and cancellation.
func WithID(id string) Option {
	return func(d *Descriptor) { d.ID = id }
}

// WithMockFile sets the file served in mock mode.
func WithMockFile(path string) Option {
	return func(d *Descriptor) { d.MockFile = path }
}

// Description identifies the request in logs and the in-flight registry:
// the ID when set, otherwise "METHOD - scheme://hostpath".
func (d Descriptor) Description() string {
	if d.ID != "" {
		return d.ID
	}
	return fmt.Sprintf("%s - %s://%s%s", d.Method, d.Scheme, d.Host, d.Path)
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return d.Description()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the URL components and limits. Failures are *BuildError
// of kind KindInvalidURL.
func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return newBuildError(KindInvalidURL, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()), err)
		}
		return newBuildError(KindInvalidURL, "descriptor validation failed", err)
	}
	return nil
}
