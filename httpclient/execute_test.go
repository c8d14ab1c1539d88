package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/cache/memory"
	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

type model struct {
	ID int `json:"id"`
}

// countingTransport answers every request with status and body.
type countingTransport struct {
	calls  atomic.Int32
	status int
	body   string
	err    error
}

func (c *countingTransport) Do(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
		Header:     http.Header{},
		Request:    req,
	}, nil
}

func newDescriptor(t *testing.T, rawURL string, opts ...request.Option) request.Descriptor {
	t.Helper()
	d, err := request.FromURL(request.MethodGet, rawURL, opts...)
	require.NoError(t, err)
	return d
}

func newKey(t *testing.T, name string, policy cache.Policy) cache.Key {
	t.Helper()
	k, err := cache.NewKey(name, policy, cache.Offset{Hours: 1})
	require.NoError(t, err)
	return k
}

func newTestCache() *cache.Cache {
	return cache.New(memory.New("httpclient-test"))
}

func TestResponseDecodesSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	m := NewBuilder(logger.Nop()).Build()
	got, err := ResponseAs[model](context.Background(), m, newDescriptor(t, srv.URL+"/models/1"))
	require.NoError(t, err)
	assert.Equal(t, model{ID: 1}, got)
}

func TestResponseServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	m := NewBuilder(logger.Nop()).Build()
	resp, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/models/1"))

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.True(t, IsHTTPStatusError(err, http.StatusInternalServerError))
	assert.Equal(t, []byte(`{"error":"boom"}`), ErrorBody(err))
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	_, err = ResponseAs[model](context.Background(), m, newDescriptor(t, srv.URL+"/models/1"))
	assert.True(t, IsHTTPStatusError(err, http.StatusInternalServerError))
}

func TestResponseAsDecodableError(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK, body: "not json"}
	m := NewBuilder(logger.Nop()).WithTransport(transport).Build()

	_, err := ResponseAs[model](context.Background(), m, newDescriptor(t, "https://api.example.com/x"))
	require.Error(t, err)
	assert.True(t, IsErrorType(err, DecodableError))

	var de *decodableError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "httpclient.model", de.TypeName())
}

// tokenServer accepts only "Bearer <valid>" and counts hits.
func tokenServer(t *testing.T, valid string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("expired"))
			return
		}
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTokenSource(fetchErr error, next string) (*auth.TokenSource, *atomic.Int32) {
	var fetches atomic.Int32
	ts := auth.NewTokenSource(func(context.Context, *http.Request) (auth.Token, error) {
		fetches.Add(1)
		if fetchErr != nil {
			return auth.Token{}, fetchErr
		}
		return auth.Token{Value: next}, nil
	}, auth.WithInitialToken(auth.Token{Value: "old"}))
	return ts, &fetches
}

func TestAuthRetryReplaysAfterRefresh(t *testing.T) {
	srv, hits := tokenServer(t, "new")
	ts, fetches := newTokenSource(nil, "new")
	m := NewBuilder(logger.Nop()).Build()

	resp, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/me", request.WithCredentials(ts)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), fetches.Load())
}

func TestAuthRetryHappensAtMostOnce(t *testing.T) {
	srv, hits := tokenServer(t, "never-issued")
	ts, fetches := newTokenSource(nil, "still-wrong")
	m := NewBuilder(logger.Nop()).Build()

	resp, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/me", request.WithCredentials(ts)))
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusUnauthorized))
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), fetches.Load())
}

func TestAuthRetryHandsRefresherLiveRequest(t *testing.T) {
	srv, hits := tokenServer(t, "new")

	var ctxErr error
	var body []byte
	ts := auth.NewTokenSource(func(_ context.Context, failed *http.Request) (auth.Token, error) {
		ctxErr = failed.Context().Err()
		b, err := io.ReadAll(failed.Body)
		if err != nil {
			return auth.Token{}, err
		}
		body = b
		return auth.Token{Value: "new"}, nil
	}, auth.WithInitialToken(auth.Token{Value: "old"}))

	m := NewBuilder(logger.Nop()).Build()
	d, err := request.FromURL(request.MethodPost, srv.URL+"/me",
		request.WithCredentials(ts),
		request.WithParameters(request.JSON(map[string]int{"id": 7})),
	)
	require.NoError(t, err)

	resp, err := m.Response(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
	assert.NoError(t, ctxErr)
	assert.JSONEq(t, `{"id":7}`, string(body))
}

func TestAuthRetryRefreshFailureKeepsOriginal401(t *testing.T) {
	srv, hits := tokenServer(t, "new")
	ts, fetches := newTokenSource(errors.New("idp down"), "")
	m := NewBuilder(logger.Nop()).Build()

	_, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/me", request.WithCredentials(ts)))
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusUnauthorized))
	assert.Equal(t, []byte("expired"), ErrorBody(err))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), fetches.Load())
}

func TestAuthRetryStopsAtFirstFailingProvider(t *testing.T) {
	srv, hits := tokenServer(t, "new")
	failing, failingFetches := newTokenSource(errors.New("idp down"), "")
	later, laterFetches := newTokenSource(nil, "new")
	m := NewBuilder(logger.Nop()).Build()

	d := newDescriptor(t, srv.URL+"/me", request.WithCredentials(auth.List{failing, later}))
	_, err := m.Response(context.Background(), d)
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), failingFetches.Load())
	assert.Equal(t, int32(0), laterFetches.Load())
}

func TestAuthRetrySkipped(t *testing.T) {
	tests := []struct {
		name string
		opts func() []request.Option
	}{
		{
			name: "refresh disabled",
			opts: func() []request.Option {
				ts, _ := newTokenSource(nil, "new")
				return []request.Option{request.WithCredentials(ts), request.WithoutCredentialRefresh()}
			},
		},
		{
			name: "no refreshable provider",
			opts: func() []request.Option {
				return []request.Option{request.WithCredentials(auth.Bearer{Token: "static"})}
			},
		},
		{
			name: "no credentials",
			opts: func() []request.Option { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := tokenServer(t, "new")
			m := NewBuilder(logger.Nop()).Build()

			_, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/me", tt.opts()...))
			assert.True(t, IsHTTPStatusError(err, http.StatusUnauthorized))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestConcurrentAuthRecoverySharesProvider(t *testing.T) {
	srv, _ := tokenServer(t, "new")
	ts, fetches := newTokenSource(nil, "new")
	m := NewBuilder(logger.Nop()).Build()
	d := newDescriptor(t, srv.URL+"/me", request.WithCredentials(ts))

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Response(context.Background(), d)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, fetches.Load(), int32(len(errs)))
	assert.Equal(t, "new", ts.Token().Value)
}

func TestPreflightRefresh(t *testing.T) {
	srv, hits := tokenServer(t, "new")
	var fetches atomic.Int32
	ts := auth.NewTokenSource(func(context.Context, *http.Request) (auth.Token, error) {
		fetches.Add(1)
		return auth.Token{Value: "new"}, nil
	}, auth.WithInitialToken(auth.Token{Value: "old", Expiry: time.Now().Add(-time.Minute)}))

	m := NewBuilder(logger.Nop()).WithPreflightRefresh(true).Build()
	resp, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/me", request.WithCredentials(ts)))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Stats.Attempts)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), fetches.Load())
}

func TestCacheOnlyNeverDispatches(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK, body: "network"}
	c := newTestCache()
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(c).Build()
	ctx := context.Background()

	key := newKey(t, "profile", cache.CacheOnly)
	d := newDescriptor(t, "https://api.example.com/profile", request.WithCacheKey(key))

	_, err := m.Response(ctx, d)
	assert.True(t, IsErrorType(err, EmptyCacheError))
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "profile", []byte("stale"), time.Now().Add(-time.Second)))
	_, err = m.Response(ctx, d)
	assert.True(t, IsErrorType(err, EmptyCacheError))

	require.NoError(t, c.Put(ctx, key, []byte("cached")))
	resp, err := m.Response(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("cached"), resp.Body)
	assert.True(t, resp.FromCache)
	assert.Equal(t, 0, resp.Stats.Attempts)

	assert.Equal(t, int32(0), transport.calls.Load())
}

func TestCacheOnlyWithoutCache(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK}
	m := NewBuilder(logger.Nop()).WithTransport(transport).Build()

	d := newDescriptor(t, "https://api.example.com/p", request.WithCacheKey(newKey(t, "p", cache.CacheOnly)))
	_, err := m.Response(context.Background(), d)
	assert.True(t, IsErrorType(err, EmptyCacheError))
	assert.Equal(t, int32(0), transport.calls.Load())
}

func TestPreferCacheShortCircuit(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK, body: "network"}
	c := newTestCache()
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(c).Build()
	ctx := context.Background()

	d := newDescriptor(t, "https://api.example.com/list", request.WithCacheKey(newKey(t, "list", cache.PreferCache)))

	resp, err := m.Response(ctx, d)
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, []byte("network"), resp.Body)
	assert.Equal(t, int32(1), transport.calls.Load())

	resp, err = m.Response(ctx, d)
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("network"), resp.Body)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestPreferNetworkWritesThroughAndAlwaysDispatches(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK, body: "fresh"}
	c := newTestCache()
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(c).Build()
	ctx := context.Background()

	d := newDescriptor(t, "https://api.example.com/feed", request.WithCacheKey(newKey(t, "feed", cache.PreferNetwork)))
	for range 2 {
		resp, err := m.Response(ctx, d)
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(2), transport.calls.Load())

	entry, err := c.Get(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), entry.Payload)
}

func TestCacheFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		transport  *countingTransport
		wantStatus int
	}{
		{name: "http error keeps failed status", transport: &countingTransport{status: http.StatusServiceUnavailable, body: "down"}, wantStatus: http.StatusServiceUnavailable},
		{name: "transport failure reports zero", transport: &countingTransport{err: errors.New("dial tcp: refused")}, wantStatus: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache()
			m := NewBuilder(logger.Nop()).WithTransport(tt.transport).WithCache(c).Build()
			ctx := context.Background()

			key := newKey(t, "feed", cache.PreferNetwork)
			require.NoError(t, c.Put(ctx, key, []byte("cached")))

			resp, err := m.Response(ctx, newDescriptor(t, "https://api.example.com/feed", request.WithCacheKey(key)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, []byte("cached"), resp.Body)
			assert.True(t, resp.FromCache)
			assert.Equal(t, 1, resp.Stats.Attempts)
		})
	}
}

func TestCacheFallbackSkipsExpiredEntry(t *testing.T) {
	transport := &countingTransport{status: http.StatusServiceUnavailable, body: "down"}
	clk := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(memory.New("httpclient-test"), cache.WithClock(func() time.Time { return clk }))
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(c).Build()
	ctx := context.Background()

	key, err := cache.NewKeyAt("feed", cache.PreferNetwork, cache.Offset{Minutes: 5}, clk.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, key, []byte("stale")))

	resp, err := m.Response(ctx, newDescriptor(t, "https://api.example.com/feed", request.WithCacheKey(key)))
	require.Error(t, err)
	assert.True(t, IsHTTPStatusError(err, http.StatusServiceUnavailable))
	require.NotNil(t, resp)
	assert.False(t, resp.FromCache)
	assert.Equal(t, []byte("down"), resp.Body)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestFailureWithoutCacheEntry(t *testing.T) {
	transport := &countingTransport{err: errors.New("dial tcp: refused")}
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(newTestCache()).Build()

	d := newDescriptor(t, "https://api.example.com/feed", request.WithCacheKey(newKey(t, "feed", cache.PreferNetwork)))
	resp, err := m.Response(context.Background(), d)
	assert.Nil(t, resp)
	assert.True(t, IsErrorType(err, UnknownResponseError))
}

func TestBuildErrorIsTerminal(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK}
	c := newTestCache()
	m := NewBuilder(logger.Nop()).WithTransport(transport).WithCache(c).Build()
	ctx := context.Background()

	key := newKey(t, "bad", cache.PreferNetwork)
	require.NoError(t, c.Put(ctx, key, []byte("cached")))

	d := request.New(request.MethodGet, "api.example.com", "no-leading-slash", request.WithCacheKey(key))
	_, err := m.Response(ctx, d)
	assert.True(t, IsErrorType(err, InvalidURLError))

	d = request.New(request.MethodPost, "api.example.com", "/x", request.WithParameters(request.JSON(make(chan int))))
	_, err = m.Response(ctx, d)
	assert.True(t, IsErrorType(err, EncodingError))

	assert.Equal(t, int32(0), transport.calls.Load())
}

func TestRequestInterceptorFailureIsTerminal(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK}
	m := NewBuilder(logger.Nop()).
		WithTransport(transport).
		WithRequestInterceptor(func(context.Context, *http.Request) error { return errors.New("denied") }).
		Build()

	_, err := m.Response(context.Background(), newDescriptor(t, "https://api.example.com/x"))
	assert.True(t, IsErrorType(err, InterceptorError))
	assert.Equal(t, int32(0), transport.calls.Load())
	assert.Equal(t, 0, m.Registry().Len())
}

func TestResponseInterceptorSeesResponse(t *testing.T) {
	transport := &countingTransport{status: http.StatusAccepted, body: "ok"}
	var seen int
	m := NewBuilder(logger.Nop()).
		WithTransport(transport).
		WithResponseInterceptor(func(_ context.Context, _ *http.Request, resp *http.Response) error {
			seen = resp.StatusCode
			return nil
		}).
		Build()

	require.NoError(t, m.Send(context.Background(), newDescriptor(t, "https://api.example.com/x")))
	assert.Equal(t, http.StatusAccepted, seen)
}

func TestDefaultHeadersAndUserAgent(t *testing.T) {
	var got http.Header
	transport := TransportFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})
	m := NewBuilder(logger.Nop()).
		WithTransport(transport).
		WithDefaultHeader("X-Client", "netkit").
		WithDefaultHeader("X-Tenant", "default").
		WithUserAgent("netkit/1.0").
		Build()

	d := newDescriptor(t, "https://api.example.com/x", request.WithHeader("X-Tenant", "acme"))
	require.NoError(t, m.Send(context.Background(), d))

	assert.Equal(t, "netkit", got.Get("X-Client"))
	assert.Equal(t, "acme", got.Get("X-Tenant"))
	assert.Equal(t, "netkit/1.0", got.Get("User-Agent"))
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
}

func TestSlowSuccessLogsWarning(t *testing.T) {
	fakeLog := &fakeLogger{}
	transport := TransportFunc(func(req *http.Request) (*http.Response, error) {
		time.Sleep(5 * time.Millisecond)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})
	m := NewBuilder(fakeLog).WithTransport(transport).Build()

	d := newDescriptor(t, "https://api.example.com/slow", request.WithWarningThreshold(time.Millisecond))
	require.NoError(t, m.Send(context.Background(), d))
	assert.Len(t, fakeLog.eventsByCategory(logger.CategorySuccessWarning), 1)
	assert.Empty(t, fakeLog.eventsByCategory(logger.CategorySuccess))

	d = newDescriptor(t, "https://api.example.com/slow", request.WithWarningThreshold(time.Hour))
	require.NoError(t, m.Send(context.Background(), d))
	assert.Len(t, fakeLog.eventsByCategory(logger.CategorySuccess), 1)
}

func blockingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCancelInFlightRequest(t *testing.T) {
	srv := blockingServer(t)
	fakeLog := &fakeLogger{}
	m := NewBuilder(fakeLog).Build()
	d := newDescriptor(t, srv.URL+"/long", request.WithID("long-poll"))

	done := make(chan error, 1)
	go func() {
		_, err := m.Response(context.Background(), d)
		done <- err
	}()

	require.Eventually(t, func() bool { return m.Registry().Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"long-poll"}, m.Registry().IDs())
	assert.True(t, m.Cancel(d))

	select {
	case err := <-done:
		assert.True(t, IsErrorType(err, UnknownResponseError))
		assert.True(t, IsCanceled(err))
	case <-time.After(2 * time.Second):
		t.Fatal("request was not canceled")
	}

	assert.Equal(t, 0, m.Registry().Len())
	assert.False(t, m.Cancel(d))
	assert.Len(t, fakeLog.eventsByCategory(logger.CategoryCancel), 2)
}

func TestDescriptorTimeout(t *testing.T) {
	srv := blockingServer(t)
	m := NewBuilder(logger.Nop()).WithTimeout(time.Minute).Build()

	_, err := m.Response(context.Background(), newDescriptor(t, srv.URL+"/long", request.WithTimeout(20*time.Millisecond)))
	assert.True(t, IsErrorType(err, UnknownResponseError))
	assert.True(t, IsTimeout(err))
}

func TestClearAndResetCache(t *testing.T) {
	c := newTestCache()
	m := NewBuilder(logger.Nop()).WithCache(c).Build()
	ctx := context.Background()

	a := newKey(t, "a", cache.PreferCache)
	b := newKey(t, "b", cache.PreferCache)
	require.NoError(t, c.Put(ctx, a, []byte("a")))
	require.NoError(t, c.Put(ctx, b, []byte("b")))

	require.NoError(t, m.ClearCache(ctx, newDescriptor(t, "https://api.example.com/a", request.WithCacheKey(a))))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get(ctx, "b")
	require.NoError(t, err)

	// no key, no-op
	require.NoError(t, m.ClearCache(ctx, newDescriptor(t, "https://api.example.com/b")))
	_, err = c.Get(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, m.ResetCache(ctx))
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	bare := NewBuilder(logger.Nop()).Build()
	assert.NoError(t, bare.ClearCache(ctx, newDescriptor(t, "https://api.example.com/a", request.WithCacheKey(a))))
	assert.NoError(t, bare.ResetCache(ctx))
}

func TestCallCountIncrements(t *testing.T) {
	transport := &countingTransport{status: http.StatusOK}
	m := NewBuilder(logger.Nop()).WithTransport(transport).Build()

	var last int64
	for range 3 {
		resp, err := m.Response(context.Background(), newDescriptor(t, "https://api.example.com/x"))
		require.NoError(t, err)
		last = resp.Stats.CallCount
	}
	assert.Equal(t, int64(3), last)
}
