// Package config loads settingsctl configuration from a YAML or TOML file
// with SETTINGS_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/larixai/settingsstore"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SETTINGS_"

// Config represents the complete settingsctl configuration
type Config struct {
	Storage StorageConfig `yaml:"storage" toml:"storage" envPrefix:"STORAGE_"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache" envPrefix:"CACHE_"`
	Host    HostConfig    `yaml:"host" toml:"host" envPrefix:"HOST_"`
	Logging LoggingConfig `yaml:"logging" toml:"logging" envPrefix:"LOG_"`
}

// StorageConfig selects and sizes the backend
type StorageConfig struct {
	Backend    string `yaml:"backend" toml:"backend" env:"BACKEND"`
	Path       string `yaml:"path" toml:"path" env:"PATH"`
	Prefix     string `yaml:"prefix" toml:"prefix" env:"PREFIX"`
	QuotaBytes int64  `yaml:"quota_bytes" toml:"quota_bytes" env:"QUOTA_BYTES"`
}

// CacheConfig holds cache bounds and timing
type CacheConfig struct {
	MaxEntries    int           `yaml:"max_entries" toml:"max_entries" env:"MAX_ENTRIES"`
	DefaultTTL    time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values, parsed with time.ParseDuration
	DefaultTTLRaw    string `yaml:"default_ttl" toml:"default_ttl" env:"DEFAULT_TTL"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// HostConfig overrides the detected locale and timezone
type HostConfig struct {
	Locale   string `yaml:"locale" toml:"locale" env:"LOCALE"`
	Timezone string `yaml:"timezone" toml:"timezone" env:"TIMEZONE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			Path:       "settings.db",
			Prefix:     settingsstore.DefaultPrefix,
			QuotaBytes: settingsstore.DefaultQuota,
		},
		Cache: CacheConfig{
			MaxEntries:       settingsstore.DefaultMaxCacheEntries,
			DefaultTTLRaw:    settingsstore.DefaultCacheTTL.String(),
			SweepIntervalRaw: "10m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path on top of Default, applies
// SETTINGS_* environment overrides, parses durations and validates.
// An empty path skips the file. Files ending in .toml are parsed as
// TOML, anything else as YAML. ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := expandEnvVars(string(data))

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cache.DefaultTTLRaw != "" {
		cfg.Cache.DefaultTTL, err = time.ParseDuration(cfg.Cache.DefaultTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing default_ttl %q: %w", cfg.Cache.DefaultTTLRaw, err)
		}
	}

	if cfg.Cache.SweepIntervalRaw != "" {
		cfg.Cache.SweepInterval, err = time.ParseDuration(cfg.Cache.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Cache.SweepIntervalRaw, err)
		}
	}

	return nil
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, sqlite, bolt (got %q)", c.Storage.Backend)
	}

	if c.Storage.QuotaBytes <= 0 {
		return fmt.Errorf("storage.quota_bytes must be positive")
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative")
	}
	if c.Cache.DefaultTTL < 0 || c.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// ResolveHost returns the detected host environment with any configured
// locale or timezone applied on top.
func (c *Config) ResolveHost() settingsstore.Host {
	host := settingsstore.DetectHost()
	if c.Host.Locale != "" {
		host.Locale = settingsstore.CanonicalLocale(c.Host.Locale)
	}
	if c.Host.Timezone != "" {
		host.Timezone = settingsstore.CanonicalTimezone(c.Host.Timezone)
	}
	return host
}
