// ABOUTME: Configuration loading and parsing for loom-relay
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete loom-relay configuration
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Provider    ProviderConfig `yaml:"provider"`
	Auth        AuthConfig     `yaml:"auth"`
	Relay       RelayConfig    `yaml:"relay"`
	Logging     LoggingConfig  `yaml:"logging"`
	Environment string         `yaml:"environment"` // "development" or "production"
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig holds generation provider configuration
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	RequestTimeout time.Duration `yaml:"-"`
	HealthTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
	HealthTimeoutRaw  string `yaml:"health_timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RelayConfig holds relay behavior configuration
type RelayConfig struct {
	// HistoryWindow caps how many recent turns feed the prompt context.
	HistoryWindow int `yaml:"history_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Relay.HistoryWindow < 0 {
		return fmt.Errorf("relay.history_window must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Provider.RequestTimeoutRaw != "" {
		cfg.Provider.RequestTimeout, err = time.ParseDuration(cfg.Provider.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Provider.RequestTimeoutRaw, err)
		}
	}

	if cfg.Provider.HealthTimeoutRaw != "" {
		cfg.Provider.HealthTimeout, err = time.ParseDuration(cfg.Provider.HealthTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing health_timeout %q: %w", cfg.Provider.HealthTimeoutRaw, err)
		}
	}

	return nil
}

// IsDevelopment reports whether internal error detail may reach clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
