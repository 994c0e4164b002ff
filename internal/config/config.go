// ABOUTME: Configuration loading and parsing for guildpost-syncd
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete guildpost-syncd configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig holds queue and retention tuning
type SyncConfig struct {
	MaxRetries int `yaml:"max_retries"`

	DefaultTTL    time.Duration `yaml:"-"`
	Retention     time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`
	BackoffBase   time.Duration `yaml:"-"`
	BackoffMax    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	DefaultTTLRaw    string `yaml:"default_ttl"`
	RetentionRaw     string `yaml:"retention"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
	BackoffBaseRaw   string `yaml:"backoff_base"`
	BackoffMaxRaw    string `yaml:"backoff_max"`
}

// APIConfig holds the backend endpoint configuration for queued mutations
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`

	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
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
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative")
	}
	if c.Sync.BackoffBase > 0 && c.Sync.BackoffMax > 0 && c.Sync.BackoffMax < c.Sync.BackoffBase {
		return fmt.Errorf("sync.backoff_max must be at least sync.backoff_base")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Sync.DefaultTTLRaw, &cfg.Sync.DefaultTTL, "sync.default_ttl"},
		{cfg.Sync.RetentionRaw, &cfg.Sync.Retention, "sync.retention"},
		{cfg.Sync.SweepIntervalRaw, &cfg.Sync.SweepInterval, "sync.sweep_interval"},
		{cfg.Sync.BackoffBaseRaw, &cfg.Sync.BackoffBase, "sync.backoff_base"},
		{cfg.Sync.BackoffMaxRaw, &cfg.Sync.BackoffMax, "sync.backoff_max"},
		{cfg.API.TimeoutRaw, &cfg.API.Timeout, "api.timeout"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
