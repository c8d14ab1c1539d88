package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/httpclient"
	"github.com/gaborage/go-netkit/request"
)

// RequestOptions holds the descriptor flags shared by get and download.
type RequestOptions struct {
	Headers     map[string]string
	Query       map[string]string
	Bearer      string
	BasicAuth   string
	Timeout     time.Duration
	ID          string
	NoRefresh   bool
	CacheKey    string
	CachePolicy string
	CacheTTL    time.Duration
}

func (o *RequestOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringToStringVarP(&o.Headers, "header", "H", nil, "Request header as key=value (repeatable)")
	f.StringToStringVarP(&o.Query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	f.StringVar(&o.Bearer, "bearer", "", "Bearer token")
	f.StringVar(&o.BasicAuth, "basic", "", "Basic credentials as user:password")
	f.DurationVar(&o.Timeout, "timeout", 0, "Per-request timeout (default from client.timeout)")
	f.StringVar(&o.ID, "id", "", "Request identifier used for logs and cancellation")
	f.BoolVar(&o.NoRefresh, "no-refresh", false, "Do not refresh credentials after a 401")
	f.StringVar(&o.CacheKey, "cache-key", "", "Cache entry name; enables the response cache")
	f.StringVar(&o.CachePolicy, "cache-policy", cache.PreferCache.String(), "prefer-cache | cache-only | prefer-network")
	f.DurationVar(&o.CacheTTL, "cache-ttl", time.Hour, "Lifetime of a stored entry, at least 1m; partial minutes round up")
}

// descriptor turns the flags into a request.Descriptor for rawURL.
func (o *RequestOptions) descriptor(method request.Method, rawURL string) (request.Descriptor, error) {
	opts := []request.Option{request.WithHeaders(o.Headers)}
	for k, v := range o.Query {
		opts = append(opts, request.WithQuery(k, v))
	}

	var providers auth.List
	if o.Bearer != "" {
		providers = append(providers, auth.Bearer{Token: o.Bearer})
	}
	if o.BasicAuth != "" {
		user, pass, ok := strings.Cut(o.BasicAuth, ":")
		if !ok {
			return request.Descriptor{}, fmt.Errorf("--basic must be user:password")
		}
		providers = append(providers, auth.Basic{Username: user, Password: pass})
	}
	if len(providers) > 0 {
		opts = append(opts, request.WithCredentials(providers))
	}

	if o.Timeout > 0 {
		opts = append(opts, request.WithTimeout(o.Timeout))
	}
	if o.ID != "" {
		opts = append(opts, request.WithID(o.ID))
	}
	if o.NoRefresh {
		opts = append(opts, request.WithoutCredentialRefresh())
	}

	if o.CacheKey != "" {
		policy, err := cache.ParsePolicy(o.CachePolicy)
		if err != nil {
			return request.Descriptor{}, err
		}
		if o.CacheTTL < time.Minute {
			return request.Descriptor{}, fmt.Errorf("--cache-ttl must be at least 1m, got %s", o.CacheTTL)
		}
		// partial minutes round up
		minutes := int((o.CacheTTL + time.Minute - 1) / time.Minute)
		key, err := cache.NewKey(o.CacheKey, policy, cache.Offset{Minutes: minutes})
		if err != nil {
			return request.Descriptor{}, err
		}
		opts = append(opts, request.WithCacheKey(key))
	}

	return request.FromURL(method, rawURL, opts...)
}

// GetOptions holds options for the get command.
type GetOptions struct {
	RequestOptions
	Method  string
	Include bool
	Mock    string
}

// NewGetCommand creates the get command.
func NewGetCommand(global *GlobalOptions) *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Send a request and print the response body",
		Example: `  # Fetch a resource, caching it for ten minutes
  netkit get https://api.example.com/users --cache-key users --cache-ttl 10m

  # Serve a canned payload instead of dispatching
  netkit get https://api.example.com/users --mock testdata/users.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, global, func(ctx context.Context, rt *session) error {
				return runGet(ctx, rt, opts, args[0], cmd.OutOrStdout())
			})
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.Method, "method", "X", string(request.MethodGet), "HTTP method")
	cmd.Flags().BoolVarP(&opts.Include, "include", "i", false, "Print the status line and headers")
	cmd.Flags().StringVar(&opts.Mock, "mock", "", "Answer from this file instead of the network")
	return cmd
}

func runGet(ctx context.Context, rt *session, opts *GetOptions, rawURL string, out io.Writer) error {
	d, err := opts.descriptor(request.Method(strings.ToUpper(opts.Method)), rawURL)
	if err != nil {
		return err
	}

	var resp *httpclient.Response
	if opts.Mock != "" {
		d.MockFile = opts.Mock
		resp, err = rt.manager.Mock(ctx, d)
	} else {
		resp, err = rt.manager.Response(ctx, d)
	}
	if resp != nil {
		writeResponse(out, resp, opts.Include)
	}
	return err
}

func writeResponse(out io.Writer, resp *httpclient.Response, include bool) {
	if include {
		source := "network"
		if resp.FromCache {
			source = "cache"
		}
		fmt.Fprintf(out, "status: %d (%s, %d attempt(s), %s)\n", resp.StatusCode, source, resp.Stats.Attempts, resp.Stats.ElapsedTime)
		for k, vs := range resp.Headers {
			for _, v := range vs {
				fmt.Fprintf(out, "%s: %s\n", k, v)
			}
		}
		fmt.Fprintln(out)
	}
	_, _ = out.Write(resp.Body)
}
