package observability

import (
	"maps"
	"strings"
	"time"

	"github.com/gaborage/go-netkit/config"
)

const (
	// EndpointStdout writes spans and metrics to stdout instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default deployment environment.
	EnvironmentDevelopment = "development"
)

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the telemetry pipeline for the request engine.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool `mapstructure:"enabled"`

	Service ServiceConfig `mapstructure:"service"`

	// Environment is reported as deployment.environment.name.
	Environment string `mapstructure:"environment"`

	// Endpoint is "stdout" or an OTLP collector address.
	// HTTP endpoints carry a scheme (http://localhost:4318); gRPC endpoints are host:port.
	Endpoint string `mapstructure:"endpoint"`

	// Protocol is "http" or "grpc". Ignored for stdout.
	Protocol string `mapstructure:"protocol"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure"`

	// Headers are sent with every OTLP export, typically an API key.
	Headers map[string]string `mapstructure:"headers"`

	// SampleRate is the fraction of traces recorded, 0.0 to 1.0.
	// nil applies the default of 1.0; an explicit 0.0 is kept.
	SampleRate *float64 `mapstructure:"sample_rate"`

	Batch BatchConfig `mapstructure:"batch"`

	// ExportTimeout bounds a single span or metric export.
	ExportTimeout time.Duration `mapstructure:"export_timeout"`

	// MetricInterval is the periodic metric export interval.
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// ServiceConfig identifies the process in exported telemetry.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// BatchConfig controls the batch span processor.
type BatchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Size      int           `mapstructure:"size"`
	QueueSize int           `mapstructure:"queue_size"`
}

// FromConfig maps the loaded observability section onto a provider Config.
// The "none" exporter disables the pipeline regardless of Enabled.
func FromConfig(cfg config.ObservabilityConfig) *Config {
	c := &Config{
		Enabled:        cfg.Enabled && cfg.Exporter != config.ExporterNone,
		Service:        ServiceConfig{Name: cfg.ServiceName, Version: cfg.ServiceVersion},
		Environment:    cfg.Environment,
		Endpoint:       cfg.Endpoint,
		Protocol:       cfg.Protocol,
		Insecure:       cfg.Insecure,
		Headers:        cloneHeaderMap(cfg.Headers),
		SampleRate:     Float64Ptr(cfg.SampleRate),
		MetricInterval: cfg.MetricInterval,
	}
	if cfg.Exporter == config.ExporterStdout {
		c.Endpoint = EndpointStdout
	}
	return c
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// ApplyDefaults fills unset fields. Development and stdout pipelines export
// sooner and give up faster than production ones.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	if c.Endpoint == "" {
		c.Endpoint = EndpointStdout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.SampleRate == nil {
		c.SampleRate = Float64Ptr(1.0)
	}

	fast := c.Environment == EnvironmentDevelopment || c.Endpoint == EndpointStdout
	if c.Batch.Timeout == 0 {
		c.Batch.Timeout = 5 * time.Second
		if fast {
			c.Batch.Timeout = 500 * time.Millisecond
		}
	}
	if c.Batch.Size == 0 {
		c.Batch.Size = 512
	}
	if c.Batch.QueueSize == 0 {
		c.Batch.QueueSize = 2048
	}
	if c.ExportTimeout == 0 {
		c.ExportTimeout = 60 * time.Second
		if fast {
			c.ExportTimeout = 10 * time.Second
		}
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 10 * time.Second
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.SampleRate != nil && (*c.SampleRate < 0.0 || *c.SampleRate > 1.0) {
		return ErrInvalidSampleRate
	}
	if c.Endpoint == EndpointStdout || c.Endpoint == "" {
		return nil
	}
	if c.Protocol != "" && c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return ErrInvalidProtocol
	}
	return validateEndpointFormat(c.Endpoint, c.Protocol)
}

// validateEndpointFormat rejects gRPC endpoints with a scheme and HTTP endpoints without one.
func validateEndpointFormat(endpoint, protocol string) error {
	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")

	if protocol == ProtocolGRPC && hasScheme {
		return ErrInvalidEndpointFormat
	}
	if protocol != ProtocolGRPC && !hasScheme {
		return ErrInvalidEndpointFormat
	}
	return nil
}
