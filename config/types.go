package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the netkit configuration tree. The embedded koanf instance keeps
// every loaded key reachable through the Get* accessors.
type Config struct {
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Client        ClientConfig        `koanf:"client" json:"client" yaml:"client" mapstructure:"client"`
	Cache         CacheConfig         `koanf:"cache" json:"cache" yaml:"cache" mapstructure:"cache"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// ClientConfig holds defaults for the request execution engine.
// Defaults:
//   - Timeout: 60s (per request, overridable per descriptor)
//   - DownloadTimeout: 0 (falls back to Timeout)
//   - WarningThreshold: 2s (slower successes log at warn)
//   - TraceHeader: X-Request-ID (empty disables trace injection)
type ClientConfig struct {
	Timeout          time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	DownloadTimeout  time.Duration `koanf:"download_timeout" json:"download_timeout" yaml:"download_timeout" mapstructure:"download_timeout"`
	WarningThreshold time.Duration `koanf:"warning_threshold" json:"warning_threshold" yaml:"warning_threshold" mapstructure:"warning_threshold"`
	UserAgent        string        `koanf:"user_agent" json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
	TraceHeader      string        `koanf:"trace_header" json:"trace_header" yaml:"trace_header" mapstructure:"trace_header"`
}

// CacheConfig selects and configures the response cache backend.
type CacheConfig struct {
	Backend   string      `koanf:"backend" json:"backend" yaml:"backend" mapstructure:"backend"` // memory | redis
	Namespace string      `koanf:"namespace" json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	Redis     RedisConfig `koanf:"redis" json:"redis" yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis-specific cache settings.
type RedisConfig struct {
	Host         string        `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port         int           `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Password     string        `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`
	Database     int           `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	PoolSize     int           `koanf:"poolsize" json:"poolsize" yaml:"poolsize" mapstructure:"poolsize"`
	DialTimeout  time.Duration `koanf:"dialtimeout" json:"dialtimeout" yaml:"dialtimeout" mapstructure:"dialtimeout"`
	ReadTimeout  time.Duration `koanf:"readtimeout" json:"readtimeout" yaml:"readtimeout" mapstructure:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout" json:"writetimeout" yaml:"writetimeout" mapstructure:"writetimeout"`
	MaxRetries   int           `koanf:"maxretries" json:"maxretries" yaml:"maxretries" mapstructure:"maxretries"`
}

// ObservabilityConfig toggles the OpenTelemetry providers.
// Endpoint, Protocol, Insecure and Headers apply to the otlp exporter only.
type ObservabilityConfig struct {
	Enabled        bool              `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Exporter       string            `koanf:"exporter" json:"exporter" yaml:"exporter" mapstructure:"exporter"` // stdout | otlp | none
	ServiceName    string            `koanf:"service_name" json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string            `koanf:"service_version" json:"service_version" yaml:"service_version" mapstructure:"service_version"`
	Environment    string            `koanf:"environment" json:"environment" yaml:"environment" mapstructure:"environment"`
	Endpoint       string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Protocol       string            `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"` // http | grpc
	Insecure       bool              `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	Headers        map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	SampleRate     float64           `koanf:"sample_rate" json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	MetricInterval time.Duration     `koanf:"metric_interval" json:"metric_interval" yaml:"metric_interval" mapstructure:"metric_interval"`
}
