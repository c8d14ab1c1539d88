package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSourceAttach(t *testing.T) {
	ctx := context.Background()

	empty := NewTokenSource(nil)
	c, err := empty.Attach(ctx)
	require.NoError(t, err)
	assert.Empty(t, c.Headers)

	_, err = NewTokenSource(nil, RequireToken()).Attach(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	seeded := NewTokenSource(nil, WithInitialToken(Token{Value: "abc"}))
	c, err = seeded.Attach(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, c.Headers)

	custom := NewTokenSource(nil, WithInitialToken(Token{Value: "abc"}), WithHeader("X-Token", ""))
	c, err = custom.Attach(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Token": "abc"}, c.Headers)
}

func TestTokenSourceValid(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name  string
		token Token
		opts  []TokenOption
		want  bool
	}{
		{name: "empty", token: Token{}, want: false},
		{name: "no expiry", token: Token{Value: "t"}, want: true},
		{name: "future expiry", token: Token{Value: "t", Expiry: now.Add(time.Hour)}, want: true},
		{name: "expired", token: Token{Value: "t", Expiry: now}, want: false},
		{name: "inside leeway", token: Token{Value: "t", Expiry: now.Add(time.Minute)}, opts: []TokenOption{WithLeeway(2 * time.Minute)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]TokenOption{WithInitialToken(tt.token), WithTokenClock(clock)}, tt.opts...)
			assert.Equal(t, tt.want, NewTokenSource(nil, opts...).Valid())
		})
	}
}

func TestTokenSourceRefresh(t *testing.T) {
	failedReq, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)

	var seen *http.Request
	ts := NewTokenSource(func(_ context.Context, failed *http.Request) (Token, error) {
		seen = failed
		return Token{Value: "fresh"}, nil
	})

	require.NoError(t, ts.Refresh(context.Background(), failedReq))
	assert.Same(t, failedReq, seen)
	assert.Equal(t, "fresh", ts.Token().Value)
	assert.True(t, ts.Valid())
}

func TestTokenSourceRefreshFailureKeepsToken(t *testing.T) {
	boom := errors.New("boom")
	ts := NewTokenSource(func(context.Context, *http.Request) (Token, error) {
		return Token{}, boom
	}, WithInitialToken(Token{Value: "old"}))

	assert.ErrorIs(t, ts.Refresh(context.Background(), nil), boom)
	assert.Equal(t, "old", ts.Token().Value)
}

func TestTokenSourceCoalescesConcurrentRefreshes(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	ts := NewTokenSource(func(context.Context, *http.Request) (Token, error) {
		fetches.Add(1)
		<-release
		return Token{Value: "shared"}, nil
	})

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for range callers {
		go func() {
			defer done.Done()
			started.Done()
			assert.NoError(t, ts.Refresh(context.Background(), nil))
		}()
	}
	started.Wait()
	// give every caller time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	assert.Equal(t, "shared", ts.Token().Value)
}

func TestTokenSourceRefreshSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var fetchErr atomic.Value
	ts := NewTokenSource(func(ctx context.Context, _ *http.Request) (Token, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return Token{}, err
		}
		return Token{Value: "shared"}, nil
	})

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() { firstDone <- ts.Refresh(first, nil) }()
	<-started

	secondDone := make(chan error, 1)
	go func() { secondDone <- ts.Refresh(context.Background(), nil) }()

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	require.NoError(t, <-secondDone)
	assert.Nil(t, fetchErr.Load())
	assert.Equal(t, "shared", ts.Token().Value)
}
