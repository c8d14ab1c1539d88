// Package commands implements the netkit CLI on top of httpclient.Manager.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gaborage/go-netkit/cache"
	"github.com/gaborage/go-netkit/cache/memory"
	"github.com/gaborage/go-netkit/cache/redis"
	"github.com/gaborage/go-netkit/config"
	"github.com/gaborage/go-netkit/httpclient"
	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/observability"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigFile string
	LogLevel   string
	Pretty     bool
}

// NewRootCommand creates the netkit root command with all subcommands.
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	root := &cobra.Command{
		Use:   "netkit",
		Short: "Issue HTTP requests through the netkit request engine",
		Long: `netkit drives the request execution engine from the command line.

Requests go through the same credential, cache and logging pipeline an
embedding service uses. Configuration is read from a YAML file and
NETKIT_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "netkit.yaml", "Configuration file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override log.level")
	root.PersistentFlags().BoolVar(&opts.Pretty, "pretty", false, "Human-readable logs on stderr")

	root.AddCommand(
		NewGetCommand(opts),
		NewDownloadCommand(opts),
		NewCacheCommand(opts),
		NewVersionCommand(version),
	)
	return root
}

// session is the Manager plus everything it owns for one command invocation.
type session struct {
	config    *config.Config
	logger    logger.Logger
	manager   *httpclient.Manager
	telemetry observability.Provider
}

func newSession(opts *GlobalOptions, stderr io.Writer) (*session, error) {
	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	var out io.Writer = stderr
	if opts.Pretty || cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: stderr}
	}
	log := logger.NewWithWriter(out, level)

	telemetry, err := observability.NewProvider(observability.FromConfig(cfg.Observability), log)
	if err != nil {
		return nil, err
	}

	store, err := newStore(cfg.Cache)
	if err != nil {
		_ = observability.Shutdown(telemetry, observability.DefaultShutdownTimeout)
		return nil, err
	}

	b := httpclient.NewBuilderFromConfig(log, cfg.Client).
		WithCache(cache.New(store)).
		WithPreflightRefresh(true)
	if cfg.Observability.Enabled {
		b.WithTransport(httpclient.NewInstrumentedTransport())
	}

	return &session{config: cfg, logger: log, manager: b.Build(), telemetry: telemetry}, nil
}

func newStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		store, err := redis.NewStore(redis.FromConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("cache backend: %w", err)
		}
		return store, nil
	default:
		return memory.New(cfg.Namespace), nil
	}
}

// Close releases the cache and flushes telemetry.
func (s *session) Close() {
	if c := s.manager.Cache(); c != nil {
		if err := c.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if err := observability.Shutdown(s.telemetry, observability.DefaultShutdownTimeout); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// withSession builds a session for the command, runs fn and closes it.
func withSession(cmd *cobra.Command, opts *GlobalOptions, fn func(context.Context, *session) error) error {
	rt, err := newSession(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(cmd.Context(), rt)
}
