package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/httpclient/internal/tracking"
	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
	"github.com/gaborage/go-netkit/trace"
)

// exchange is one settled dispatch.
type exchange struct {
	req     *nethttp.Request
	status  int
	body    []byte
	headers nethttp.Header
	elapsed time.Duration
}

// Response executes d and returns the raw outcome.
//
// A non-2xx status yields a NetworkError together with the Response. When the
// descriptor has a cache key and a fresh entry exists, a failed request
// returns the cached body with the failed status code, FromCache set and a
// nil error. Transport failures report status 0 in that case.
func (m *Manager) Response(ctx context.Context, d request.Descriptor) (*Response, error) {
	start := m.now()
	callCount := atomic.AddInt64(&m.callCount, 1)

	if resp, done, err := m.checkCache(ctx, d, start, callCount); done {
		return resp, err
	}

	if m.config.PreflightRefresh && d.CanRefreshCredentials && d.Credentials != nil {
		auth.RefreshIfNeeded(ctx, m.logger, d.Credentials, nil)
	}

	canRefresh := d.CanRefreshCredentials
	for attempt := 1; ; attempt++ {
		ex, err := m.dispatch(ctx, d, attempt)
		if err != nil {
			if IsErrorType(err, UnknownResponseError) {
				return m.fail(ctx, d, nil, err, start, callCount, attempt)
			}
			m.logFailure(d, 0, err)
			return nil, err
		}

		resp := &Response{
			StatusCode: ex.status,
			Body:       ex.body,
			Headers:    ex.headers,
			Stats: Stats{
				ElapsedTime: m.now().Sub(start),
				CallCount:   callCount,
				Attempts:    attempt,
			},
		}

		if IsSuccessStatus(ex.status) {
			category := logger.CategorySuccess
			if ex.elapsed >= m.warningThreshold(d) {
				category = logger.CategorySuccessWarning
			}
			m.logResponse(resp, requestIDOf(ctx, ex.req), category)
			m.store(ctx, d, ex.body)
			return resp, nil
		}

		if ex.status == nethttp.StatusUnauthorized && canRefresh {
			if rs := auth.Refreshables(d.Credentials); len(rs) > 0 {
				canRefresh = false
				err := auth.RefreshAll(ctx, rs, failedRequest(ctx, ex.req))
				tracking.RecordAuthRetry(ctx, err == nil)
				if err == nil {
					m.logger.Info().
						Str("request", d.Description()).
						Msg("Credentials refreshed; replaying request")
					continue
				}
				m.logger.Warn().
					Err(err).
					Str("request", d.Description()).
					Msg("Credential refresh failed")
			}
		}

		m.logResponse(resp, requestIDOf(ctx, ex.req), logger.CategoryFail)
		return m.fail(ctx, d, resp, NewNetworkError(ex.status, ex.body), start, callCount, attempt)
	}
}

// Send executes d and discards the body.
func (m *Manager) Send(ctx context.Context, d request.Descriptor) error {
	_, err := m.Response(ctx, d)
	return err
}

// ResponseAs executes d and decodes the body into T with the Manager's decoder.
// A cache fallback is decoded like a live body.
func ResponseAs[T any](ctx context.Context, m *Manager, d request.Descriptor) (T, error) {
	var out T
	resp, err := m.Response(ctx, d)
	if err != nil {
		return out, err
	}
	if err := m.decoder(resp.Body, &out); err != nil {
		return out, NewDecodableError(fmt.Sprintf("%T", out), err)
	}
	return out, nil
}

// Cancel cancels the in-flight request matching d's identifier. It reports
// false when no such request is running.
func (m *Manager) Cancel(d request.Descriptor) bool {
	id := d.Description()
	ok := m.registry.Cancel(id)
	logger.Network(m.logger, logger.CategoryCancel).
		Str("request", id).
		Bool("found", ok).
		Msg("Request canceled")
	return ok
}

// ClearCache deletes the cache entry of d. Descriptors without a cache key
// and Managers without a cache are a no-op.
func (m *Manager) ClearCache(ctx context.Context, d request.Descriptor) error {
	if m.cache == nil || d.CacheKey == nil {
		return nil
	}
	return m.cache.Delete(ctx, d.CacheKey.Name)
}

// ResetCache removes every entry in the cache namespace.
func (m *Manager) ResetCache(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.ResetAll(ctx)
}

// checkCache resolves cache-only and prefer-cache descriptors before any
// dispatch. done reports whether the caller must return resp and err as is.
func (m *Manager) checkCache(ctx context.Context, d request.Descriptor, start time.Time, callCount int64) (resp *Response, done bool, err error) {
	if d.CacheKey == nil {
		return nil, false, nil
	}

	switch d.CacheKey.Policy {
	case cache.CacheOnly:
		entry, ok := m.lookup(ctx, d)
		if !ok {
			tracking.RecordCacheResult(ctx, tracking.CacheEmpty)
			return nil, true, NewEmptyCacheError(d.CacheKey.Name, cache.ErrNotFound)
		}
		tracking.RecordCacheResult(ctx, tracking.CacheServed)
		return m.cachedResponse(d, entry, nethttp.StatusOK, start, callCount, 0), true, nil
	case cache.PreferCache:
		if entry, ok := m.lookup(ctx, d); ok {
			tracking.RecordCacheResult(ctx, tracking.CacheServed)
			return m.cachedResponse(d, entry, nethttp.StatusOK, start, callCount, 0), true, nil
		}
	}
	return nil, false, nil
}

// fail applies the cache fallback to a failed request, or returns cause.
func (m *Manager) fail(ctx context.Context, d request.Descriptor, resp *Response, cause error, start time.Time, callCount int64, attempts int) (*Response, error) {
	if entry, ok := m.lookup(ctx, d); ok {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		tracking.RecordCacheResult(ctx, tracking.CacheFallback)
		return m.cachedResponse(d, entry, status, start, callCount, attempts), nil
	}

	if resp == nil {
		m.logFailure(d, 0, cause)
	}
	return resp, cause
}

func (m *Manager) cachedResponse(d request.Descriptor, entry cache.Entry, status int, start time.Time, callCount int64, attempts int) *Response {
	logger.Network(m.logger, logger.CategoryCache).
		Str("request", d.Description()).
		Str("key", d.CacheKey.Name).
		Int("status", status).
		Msg("Serving cached response")

	return &Response{
		StatusCode: status,
		Body:       entry.Payload,
		Headers:    nethttp.Header{},
		Stats: Stats{
			ElapsedTime: m.now().Sub(start),
			CallCount:   callCount,
			Attempts:    attempts,
		},
		FromCache: true,
	}
}

// lookup returns a fresh entry for d. Store failures are logged and read as a miss.
func (m *Manager) lookup(ctx context.Context, d request.Descriptor) (cache.Entry, bool) {
	if m.cache == nil || d.CacheKey == nil {
		return cache.Entry{}, false
	}
	entry, err := m.cache.Get(ctx, d.CacheKey.Name)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.logger.Warn().
				Err(err).
				Str("key", d.CacheKey.Name).
				Msg("Cache lookup failed")
		}
		return cache.Entry{}, false
	}
	return entry, true
}

func (m *Manager) store(ctx context.Context, d request.Descriptor, body []byte) {
	if m.cache == nil || d.CacheKey == nil {
		return
	}
	if err := m.cache.Put(ctx, *d.CacheKey, body); err != nil {
		m.logger.Warn().
			Err(err).
			Str("key", d.CacheKey.Name).
			Msg("Cache write failed")
		return
	}
	tracking.RecordCacheResult(ctx, tracking.CacheStored)
}

// dispatch builds and sends one attempt of d under its own deadline.
func (m *Manager) dispatch(ctx context.Context, d request.Descriptor, attempt int) (*exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, d.TimeoutOr(m.config.Timeout))
	defer cancel()

	req, err := m.buildRequest(ctx, d)
	if err != nil {
		return nil, err
	}

	id := d.Description()
	ctx, span := tracking.StartRequest(ctx, req, id, attempt)
	req = req.WithContext(ctx)
	host := req.URL.Hostname()

	if err := m.runRequestInterceptors(ctx, req); err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, 0, 0, err)
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}

	release := m.registry.Register(id, cancel)
	defer release()

	m.logRequest(req, peekBody(req), requestIDOf(ctx, req), d.URLParameters)

	sent := m.now()
	httpResp, err := m.transport.Do(req)
	if err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, 0, m.now().Sub(sent), err)
		return nil, NewUnknownResponseError("request execution failed", err)
	}
	ex, err := m.readResponse(ctx, req, httpResp)
	elapsed := m.now().Sub(sent)
	if err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, httpResp.StatusCode, elapsed, err)
		return nil, err
	}
	ex.elapsed = elapsed
	tracking.EndRequest(ctx, span, req.Method, host, ex.status, elapsed, nil)
	return ex, nil
}

// failedRequest copies a settled attempt for credential refreshers. The copy
// is bound to ctx because the attempt's own deadline has been released, and
// its body is rewound when the request supports it.
func failedRequest(ctx context.Context, req *nethttp.Request) *nethttp.Request {
	failed := req.Clone(ctx)
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			failed.Body = body
		}
	}
	return failed
}

// buildRequest assembles the wire request and applies Manager-wide headers.
func (m *Manager) buildRequest(ctx context.Context, d request.Descriptor) (*nethttp.Request, error) {
	req, err := request.Build(ctx, d, m.buildOptions())
	if err != nil {
		return nil, mapBuildError(err)
	}
	m.applyDefaults(req)
	return req, nil
}

// readResponse runs response interceptors and drains the body.
func (m *Manager) readResponse(ctx context.Context, req *nethttp.Request, httpResp *nethttp.Response) (*exchange, error) {
	defer httpResp.Body.Close()

	if err := m.runResponseInterceptors(ctx, req, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewUnknownResponseError("failed to read response body", err)
	}
	return &exchange{
		req:     req,
		status:  httpResp.StatusCode,
		body:    body,
		headers: httpResp.Header,
	}, nil
}

// applyDefaults sets Manager default headers the request does not carry.
func (m *Manager) applyDefaults(req *nethttp.Request) {
	for key, value := range m.config.DefaultHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if m.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", m.config.UserAgent)
	}
}

// runRequestInterceptors executes all request interceptors
func (m *Manager) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range m.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (m *Manager) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range m.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func mapBuildError(err error) error {
	var be *request.BuildError
	if errors.As(err, &be) {
		return NewBuildError(be)
	}
	return NewBuildError(&request.BuildError{Kind: request.KindInvalidURL, Message: "cannot build request", Err: err})
}

// peekBody returns the request body without consuming it.
func peekBody(req *nethttp.Request) []byte {
	if req.GetBody == nil {
		return nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil
	}
	return data
}

// requestIDOf returns the request ID header, falling back to the context trace ID.
func requestIDOf(ctx context.Context, req *nethttp.Request) string {
	if req != nil {
		if id := req.Header.Get(trace.HeaderXRequestID); id != "" {
			return id
		}
	}
	id, _ := trace.IDFromContext(ctx)
	return id
}
