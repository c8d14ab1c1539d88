package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNoToken is returned by TokenSource.Attach before the first successful fetch
// when the source was created with RequireToken.
var ErrNoToken = errors.New("auth: no token available")

// Token is an access token and the instant it stops being valid. A zero
// Expiry never expires.
type Token struct {
	Value  string
	Expiry time.Time
}

// FetchFunc obtains a new token. failed is the request that was rejected, or
// nil for a pre-flight refresh.
type FetchFunc func(ctx context.Context, failed *http.Request) (Token, error)

// TokenSource is a Refreshable bearer provider. Concurrent Refresh calls
// share one fetch.
type TokenSource struct {
	fetch   FetchFunc
	header  string
	scheme  string
	leeway  time.Duration
	require bool
	now     func() time.Time

	mu    sync.RWMutex
	token Token

	group singleflight.Group
}

var _ Refreshable = (*TokenSource)(nil)

// TokenOption configures a TokenSource.
type TokenOption func(*TokenSource)

// WithHeader sends the token in header with the given scheme prefix.
// An empty scheme sends the bare token.
func WithHeader(header, scheme string) TokenOption {
	return func(ts *TokenSource) {
		ts.header = header
		ts.scheme = scheme
	}
}

// WithLeeway treats a token as invalid this long before it expires.
func WithLeeway(d time.Duration) TokenOption {
	return func(ts *TokenSource) { ts.leeway = d }
}

// WithInitialToken seeds the source.
func WithInitialToken(t Token) TokenOption {
	return func(ts *TokenSource) { ts.token = t }
}

// WithTokenClock replaces time.Now for validity checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ts *TokenSource) {
		if now != nil {
			ts.now = now
		}
	}
}

// RequireToken makes Attach fail with ErrNoToken instead of sending nothing.
func RequireToken() TokenOption {
	return func(ts *TokenSource) { ts.require = true }
}

// NewTokenSource creates a source that sends "Authorization: Bearer <token>".
func NewTokenSource(fetch FetchFunc, opts ...TokenOption) *TokenSource {
	ts := &TokenSource{
		fetch:  fetch,
		header: "Authorization",
		scheme: "Bearer",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Attach implements Provider.
func (ts *TokenSource) Attach(context.Context) (Credentials, error) {
	tok := ts.Token()
	if tok.Value == "" {
		if ts.require {
			return Credentials{}, ErrNoToken
		}
		return Credentials{}, nil
	}

	value := tok.Value
	if ts.scheme != "" {
		value = ts.scheme + " " + value
	}
	return Credentials{Headers: map[string]string{ts.header: value}}, nil
}

// Token returns the current token.
func (ts *TokenSource) Token() Token {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.token
}

// Valid implements Refreshable.
func (ts *TokenSource) Valid() bool {
	tok := ts.Token()
	if tok.Value == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return ts.now().Add(ts.leeway).Before(tok.Expiry)
}

// Refresh implements Refreshable. Callers arriving while a fetch is running
// wait for it and share its result. The shared fetch is detached from the
// cancellation of the caller that started it; each caller stops waiting when
// its own ctx is done.
func (ts *TokenSource) Refresh(ctx context.Context, failed *http.Request) error {
	fetchCtx := context.WithoutCancel(ctx)
	ch := ts.group.DoChan("refresh", func() (any, error) {
		tok, err := ts.fetch(fetchCtx, failed)
		if err != nil {
			return nil, err
		}
		ts.mu.Lock()
		ts.token = tok
		ts.mu.Unlock()
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
