package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/logger"
)

// DefaultTimeout applies when neither the descriptor nor BuildOptions set one.
const DefaultTimeout = 60 * time.Second

const (
	headerContentType  = "Content-Type"
	headerCacheControl = "Cache-Control"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	maxFormDepth = 32
)

// BuildOptions carries the engine-wide settings a build needs.
type BuildOptions struct {
	// Boundary fixes the multipart boundary; empty generates a random one.
	Boundary string
	// DefaultTimeout is used when the descriptor has none.
	DefaultTimeout time.Duration
	// Logger receives body encoding faults that do not fail the build.
	Logger logger.Logger
}

// TimeoutOr returns the descriptor's timeout, or def when unset. A zero def
// falls back to DefaultTimeout.
func (d Descriptor) TimeoutOr(def time.Duration) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	if def > 0 {
		return def
	}
	return DefaultTimeout
}

// Build assembles the wire request for d with credentials attached.
func Build(ctx context.Context, d Descriptor, opts BuildOptions) (*http.Request, error) {
	return build(ctx, d, opts, true)
}

// BuildWithoutCredentials assembles the wire request for d ignoring its
// credential provider.
func BuildWithoutCredentials(ctx context.Context, d Descriptor, opts BuildOptions) (*http.Request, error) {
	return build(ctx, d, opts, false)
}

func build(ctx context.Context, d Descriptor, opts BuildOptions, withCredentials bool) (*http.Request, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var creds auth.Credentials
	if withCredentials && d.Credentials != nil {
		c, err := d.Credentials.Attach(ctx)
		if err != nil {
			return nil, newBuildError(KindCredentials, "credential provider failed", err)
		}
		creds = c
	}

	u, err := buildURL(d, creds.Query)
	if err != nil {
		return nil, err
	}

	body, bodyHeaders, err := encodeBody(d, opts, log)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, string(d.Method), u.String(), reader)
	if err != nil {
		return nil, newBuildError(KindInvalidURL, "cannot create request", err)
	}

	applyHeaders(req, creds.Headers, d.Headers)
	for k, v := range bodyHeaders {
		req.Header.Set(k, v)
	}
	if d.CachePolicy == ReloadIgnoringLocalCache && req.Header.Get(headerCacheControl) == "" {
		req.Header.Set(headerCacheControl, "no-cache")
	}
	return req, nil
}

// applyHeaders merges credential headers with caller headers, the caller
// winning on an exact key match.
func applyHeaders(req *http.Request, fromAuth, fromCaller map[string]string) {
	merged := make(map[string]string, len(fromAuth)+len(fromCaller))
	maps.Copy(merged, fromAuth)
	maps.Copy(merged, fromCaller)

	callerKeys := make(map[string]bool, len(fromCaller))
	for k := range fromCaller {
		callerKeys[http.CanonicalHeaderKey(k)] = true
	}

	// keys differing only in case collapse on the wire; a caller key beats an auth key
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		canonical := http.CanonicalHeaderKey(k)
		_, isCaller := fromCaller[k]
		if !isCaller && callerKeys[canonical] {
			continue
		}
		req.Header.Set(k, merged[k])
	}
}

func buildURL(d Descriptor, authQuery []auth.QueryItem) (*url.URL, error) {
	if d.Path != "" && !strings.HasPrefix(d.Path, "/") {
		return nil, newBuildError(KindInvalidURL, fmt.Sprintf("path %q must start with /", d.Path), nil)
	}

	host := d.Host
	if d.Port > 0 {
		host = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	}
	u := &url.URL{Scheme: d.Scheme, Host: host, Path: d.Path}

	var parts []string
	for _, k := range slices.Sorted(maps.Keys(d.URLParameters)) {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(d.URLParameters[k]))
	}
	for _, item := range authQuery {
		if _, taken := d.URLParameters[item.Key]; taken {
			continue
		}
		parts = append(parts, url.QueryEscape(item.Key)+"="+url.QueryEscape(item.Value))
	}
	u.RawQuery = strings.Join(parts, "&")

	if _, err := url.Parse(u.String()); err != nil {
		return nil, newBuildError(KindInvalidURL, "assembled URL does not parse", err)
	}
	return u, nil
}

func encodeBody(d Descriptor, opts BuildOptions, log logger.Logger) ([]byte, map[string]string, error) {
	switch p := d.Parameters.(type) {
	case nil:
		if len(d.Files) > 0 {
			return encodeMultipart(nil, d.Files, opts.Boundary)
		}
		return nil, nil, nil

	case jsonBody:
		data, err := json.Marshal(p.value)
		if err != nil {
			return nil, nil, newBuildError(KindEncoding, "JSON encoding failed", err)
		}
		return data, map[string]string{headerContentType: contentTypeJSON}, nil

	case formBody:
		headers := map[string]string{headerContentType: contentTypeForm}
		if err := checkFormValues(p.values); err != nil {
			log.Error().
				Str(logger.FieldCategory, string(logger.CategoryFail)).
				Str("request", d.Description()).
				Err(err).
				Msg("Form body is not representable; sending an empty body")
			return nil, headers, nil
		}
		values := make(url.Values, len(p.values))
		for k, v := range p.values {
			values.Set(k, fmt.Sprint(v))
		}
		return []byte(values.Encode()), headers, nil

	case multipartBody:
		return encodeMultipart(p.values, d.Files, opts.Boundary)

	case rawBody:
		return p.data, map[string]string{p.header: p.value}, nil

	default:
		return nil, nil, newBuildError(KindEncoding, fmt.Sprintf("unsupported parameters %T", p), nil)
	}
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func encodeMultipart(values map[string]any, files []File, boundary string) ([]byte, map[string]string, error) {
	if boundary == "" {
		boundary = uuid.NewString()
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, nil, newBuildError(KindEncoding, "invalid multipart boundary", err)
	}

	for _, k := range slices.Sorted(maps.Keys(values)) {
		if err := w.WriteField(k, fmt.Sprint(values[k])); err != nil {
			return nil, nil, newBuildError(KindEncoding, "multipart field", err)
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Key), quoteEscaper.Replace(f.Name)))
		h.Set(headerContentType, f.contentType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, nil, newBuildError(KindEncoding, "multipart file", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, nil, newBuildError(KindEncoding, "multipart file", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, nil, newBuildError(KindEncoding, "multipart close", err)
	}
	return buf.Bytes(), map[string]string{headerContentType: w.FormDataContentType()}, nil
}

// checkFormValues accepts the JSON data model: strings, booleans, finite
// numbers, nil, and slices or string-keyed maps of those.
func checkFormValues(values map[string]any) error {
	for k, v := range values {
		if err := checkJSONLike(reflect.ValueOf(v), 0); err != nil {
			return fmt.Errorf("form value %q: %w", k, err)
		}
	}
	return nil
}

func checkJSONLike(v reflect.Value, depth int) error {
	if depth > maxFormDepth {
		return fmt.Errorf("nested deeper than %d levels", maxFormDepth)
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite number %v", f)
		}
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkJSONLike(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := checkJSONLike(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map key type %s is not string", v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkJSONLike(iter.Value(), depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
}
