// Package auth holds the credential providers attached to outbound requests.
//
// A Provider contributes headers and query items. A Refreshable provider can
// also report whether its credentials are still usable and renew them; the
// execution engine calls RefreshAll after a 401 and replays the request once.
package auth

import (
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/gaborage/go-netkit/logger"
)

// QueryItem is one URL query pair. Order and duplicates are preserved.
type QueryItem struct {
	Key   string
	Value string
}

// Credentials is what a provider contributes to a request.
type Credentials struct {
	Headers map[string]string
	Query   []QueryItem
}

// Provider supplies credentials for a request.
type Provider interface {
	Attach(ctx context.Context) (Credentials, error)
}

// Refreshable is a Provider whose credentials expire.
type Refreshable interface {
	Provider
	// Valid reports whether the current credentials can be used as is.
	Valid() bool
	// Refresh renews the credentials. failed is the request that was
	// rejected, or nil for a pre-flight refresh.
	Refresh(ctx context.Context, failed *http.Request) error
}

// List is an ordered group of providers. Headers merge with later entries
// winning on collision; query items are concatenated.
type List []Provider

var _ Provider = List(nil)

// Attach folds every member's credentials in order.
func (l List) Attach(ctx context.Context) (Credentials, error) {
	out := Credentials{Headers: make(map[string]string)}
	for i, p := range l {
		if p == nil {
			continue
		}
		c, err := p.Attach(ctx)
		if err != nil {
			return Credentials{}, fmt.Errorf("auth: provider %d: %w", i, err)
		}
		maps.Copy(out.Headers, c.Headers)
		out.Query = append(out.Query, c.Query...)
	}
	return out, nil
}

// Refreshables returns the refreshable providers in p: p itself when it is
// Refreshable, every refreshable member in order when it is a List, and
// nothing otherwise.
func Refreshables(p Provider) []Refreshable {
	switch v := p.(type) {
	case nil:
		return nil
	case List:
		var out []Refreshable
		for _, m := range v {
			if r, ok := m.(Refreshable); ok {
				out = append(out, r)
			}
		}
		return out
	case Refreshable:
		return []Refreshable{v}
	default:
		return nil
	}
}

// RefreshIfNeeded refreshes every refreshable provider in p that reports
// itself invalid. Each provider is handled on its own; failures are logged
// and do not stop the others.
func RefreshIfNeeded(ctx context.Context, log logger.Logger, p Provider, req *http.Request) {
	if log == nil {
		log = logger.Nop()
	}
	for i, r := range Refreshables(p) {
		if r.Valid() {
			continue
		}
		if err := r.Refresh(ctx, req); err != nil {
			log.Warn().
				Err(err).
				Int("provider", i).
				Msg("Credential refresh failed")
		}
	}
}

// RefreshAll refreshes rs in order and stops at the first failure.
func RefreshAll(ctx context.Context, rs []Refreshable, req *http.Request) error {
	for i, r := range rs {
		if err := r.Refresh(ctx, req); err != nil {
			return &RefreshError{Index: i, Err: err}
		}
	}
	return nil
}

// RefreshError reports which provider of a RefreshAll call failed.
type RefreshError struct {
	Index int
	Err   error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: refresh of provider %d failed: %v", e.Index, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
