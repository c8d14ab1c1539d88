package config

import (
	"fmt"
	"slices"
)

// Cache backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Telemetry exporters
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// OTLP transport protocols
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}

// Validate checks every section and returns the first failure.
func Validate(cfg *Config) error {
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	if err := validateClient(&cfg.Client); err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	if err := validateCache(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := validateObservability(&cfg.Observability); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}

	return nil
}

func validateLog(cfg *LogConfig) error {
	if !slices.Contains(validLogLevels, cfg.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("unknown level %q", cfg.Level), validLogLevels)
	}
	return nil
}

func validateClient(cfg *ClientConfig) error {
	if cfg.Timeout <= 0 {
		return NewInvalidFieldError("client.timeout", "must be positive", nil)
	}
	if cfg.DownloadTimeout < 0 {
		return NewInvalidFieldError("client.download_timeout", "must not be negative", nil)
	}
	if cfg.WarningThreshold < 0 {
		return NewInvalidFieldError("client.warning_threshold", "must not be negative", nil)
	}
	return nil
}

func validateCache(cfg *CacheConfig) error {
	backends := []string{BackendMemory, BackendRedis}
	if !slices.Contains(backends, cfg.Backend) {
		return NewInvalidFieldError("cache.backend", fmt.Sprintf("unknown backend %q", cfg.Backend), backends)
	}

	if cfg.Namespace == "" {
		return NewMissingFieldError("cache.namespace", "NETKIT_CACHE_NAMESPACE", "cache.namespace")
	}

	if cfg.Backend != BackendRedis {
		return nil
	}

	if cfg.Redis.Host == "" {
		return NewMissingFieldError("cache.redis.host", "NETKIT_CACHE_REDIS_HOST", "cache.redis.host")
	}
	if cfg.Redis.Port <= 0 || cfg.Redis.Port > 65535 {
		return NewInvalidFieldError("cache.redis.port", fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Redis.Port), nil)
	}
	if cfg.Redis.Database < 0 {
		return NewInvalidFieldError("cache.redis.database", "must not be negative", nil)
	}
	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	exporters := []string{ExporterStdout, ExporterOTLP, ExporterNone}
	if !slices.Contains(exporters, cfg.Exporter) {
		return NewInvalidFieldError("observability.exporter", fmt.Sprintf("unknown exporter %q", cfg.Exporter), exporters)
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return NewInvalidFieldError("observability.sample_rate", fmt.Sprintf("%v is outside [0, 1]", cfg.SampleRate), nil)
	}
	if cfg.Exporter != ExporterOTLP {
		return nil
	}
	protocols := []string{ProtocolHTTP, ProtocolGRPC}
	if !slices.Contains(protocols, cfg.Protocol) {
		return NewInvalidFieldError("observability.protocol", fmt.Sprintf("unknown protocol %q", cfg.Protocol), protocols)
	}
	if cfg.Enabled && cfg.Endpoint == "" {
		return NewMissingFieldError("observability.endpoint", "NETKIT_OBSERVABILITY_ENDPOINT", "observability.endpoint")
	}
	return nil
}
