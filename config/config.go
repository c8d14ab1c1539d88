package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is the optional YAML file read by Load.
	DefaultFile = "netkit.yaml"

	// EnvPrefix marks environment variables that override file and default values.
	EnvPrefix = "NETKIT_"
)

// Load loads configuration from DefaultFile. See LoadFile.
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile loads configuration from multiple sources with priority:
// 1. Environment variables prefixed with NETKIT_ (highest priority)
// 2. The YAML file at path, if it exists
// 3. Default values (lowest priority)
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := defaultValues()
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKeyMapper(defaults)), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the validated default configuration without reading any source.
func Default() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaultValues(), "."), nil)

	var cfg Config
	_ = k.Unmarshal("", &cfg)
	cfg.k = k
	return &cfg
}

func defaultValues() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.pretty": false,

		"client.timeout":           "60s",
		"client.download_timeout":  "0s",
		"client.warning_threshold": "2s",
		"client.user_agent":        "go-netkit",
		"client.trace_header":      "X-Request-ID",

		"cache.backend":            BackendMemory,
		"cache.namespace":          "netkit.cache",
		"cache.redis.host":         "localhost",
		"cache.redis.port":         6379,
		"cache.redis.database":     0,
		"cache.redis.poolsize":     10,
		"cache.redis.dialtimeout":  "5s",
		"cache.redis.readtimeout":  "3s",
		"cache.redis.writetimeout": "3s",
		"cache.redis.maxretries":   3,

		"observability.enabled":         false,
		"observability.exporter":        ExporterNone,
		"observability.service_name":    "go-netkit",
		"observability.service_version": "dev",
		"observability.environment":     "development",
		"observability.endpoint":        "",
		"observability.protocol":        ProtocolHTTP,
		"observability.insecure":        false,
		"observability.sample_rate":     1.0,
		"observability.metric_interval": "30s",
	}
}

// envKeyMapper converts NETKIT_CLIENT_WARNING_THRESHOLD to client.warning_threshold.
// Underscores are ambiguous between nesting and snake_case keys, so known keys win.
func envKeyMapper(known map[string]any) func(string) string {
	byDotted := make(map[string]string, len(known))
	for key := range known {
		byDotted[strings.ReplaceAll(key, "_", ".")] = key
	}

	return func(s string) string {
		dotted := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if key, ok := byDotted[dotted]; ok {
			return key
		}
		return dotted
	}
}
