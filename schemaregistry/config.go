package schemaregistry

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the resolution pipeline.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig configures the registry client.
type RegistryConfig struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject,omitempty"`
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	BearerToken   string        `yaml:"bearer_token,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxParallel   int           `yaml:"max_parallel"`
	MaxSchemaSize int           `yaml:"max_schema_size"`
	UserAgent     string        `yaml:"user_agent,omitempty"`
}

// CacheConfig configures the persistent schema cache.
type CacheConfig struct {
	Store string `yaml:"store"` // "memory" or "sqlite"
	DSN   string `yaml:"dsn,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// LoadConfig reads configuration from a YAML file. ${VAR} references in the
// file are expanded from the environment before parsing, and TYPERESOLVE_*
// environment variables override file values afterwards.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv creates configuration entirely from environment
// variables. This is useful for container deployments where no config file
// is mounted.
//
// Environment variables:
//
//	TYPERESOLVE_REGISTRY_URL             - Schema registry URL (required)
//	TYPERESOLVE_REGISTRY_SUBJECT         - Subject hint sent with fetches
//	TYPERESOLVE_REGISTRY_USERNAME        - Basic auth username
//	TYPERESOLVE_REGISTRY_PASSWORD        - Basic auth password
//	TYPERESOLVE_REGISTRY_BEARER_TOKEN    - Bearer token (overrides basic auth)
//	TYPERESOLVE_REGISTRY_TIMEOUT         - Request timeout (default: 30s)
//	TYPERESOLVE_REGISTRY_MAX_PARALLEL    - Max in-flight fetches (default: 8)
//	TYPERESOLVE_REGISTRY_MAX_SCHEMA_SIZE - Response size cap in bytes (default: 8 MiB)
//	TYPERESOLVE_REGISTRY_USER_AGENT      - User-Agent header sent with requests
//	TYPERESOLVE_CACHE_STORE              - Cache store: memory or sqlite (default: memory)
//	TYPERESOLVE_CACHE_DSN                - SQLite path when store is sqlite
//	TYPERESOLVE_LOG_LEVEL                - Log level: debug, info, warn, error (default: info)
//	TYPERESOLVE_LOG_FORMAT               - Log format: json or console (default: json)
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithFallback tries to load from file, falling back to environment
// variables when the file does not exist.
func LoadConfigWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		}
	}

	if os.Getenv("TYPERESOLVE_REGISTRY_URL") != "" {
		return LoadConfigFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TYPERESOLVE_REGISTRY_URL")
}

// applyEnvOverrides applies TYPERESOLVE_* environment variables to the
// config. Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TYPERESOLVE_REGISTRY_URL"); v != "" {
		cfg.Registry.URL = v
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_SUBJECT"); v != "" {
		cfg.Registry.Subject = v
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_USERNAME"); v != "" {
		cfg.Registry.Username = v
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_PASSWORD"); v != "" {
		cfg.Registry.Password = v
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_BEARER_TOKEN"); v != "" {
		cfg.Registry.BearerToken = v
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Registry.Timeout = d
		}
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Registry.MaxParallel = n
		}
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_MAX_SCHEMA_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Registry.MaxSchemaSize = n
		}
	}
	if v := os.Getenv("TYPERESOLVE_REGISTRY_USER_AGENT"); v != "" {
		cfg.Registry.UserAgent = v
	}
	if v := os.Getenv("TYPERESOLVE_CACHE_STORE"); v != "" {
		cfg.Cache.Store = v
	}
	if v := os.Getenv("TYPERESOLVE_CACHE_DSN"); v != "" {
		cfg.Cache.DSN = v
	}
	if v := os.Getenv("TYPERESOLVE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TYPERESOLVE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Registry.Timeout == 0 {
		cfg.Registry.Timeout = defaultTimeout
	}
	if cfg.Registry.MaxParallel == 0 {
		cfg.Registry.MaxParallel = 8
	}
	if cfg.Registry.MaxSchemaSize == 0 {
		cfg.Registry.MaxSchemaSize = defaultMaxSchemaSize
	}

	if cfg.Cache.Store == "" {
		cfg.Cache.Store = "memory"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Registry.URL == "" {
		return fmt.Errorf("registry.url is required")
	}
	if _, err := url.Parse(ensureScheme(cfg.Registry.URL)); err != nil {
		return fmt.Errorf("registry.url is not a valid URL: %v", err)
	}
	if cfg.Registry.MaxParallel < 0 {
		return fmt.Errorf("registry.max_parallel must not be negative")
	}
	if cfg.Registry.MaxSchemaSize < 0 {
		return fmt.Errorf("registry.max_schema_size must not be negative")
	}

	validStores := map[string]bool{"memory": true, "sqlite": true}
	if !validStores[cfg.Cache.Store] {
		return fmt.Errorf("cache.store must be 'memory' or 'sqlite', got %q", cfg.Cache.Store)
	}
	if cfg.Cache.Store == "sqlite" && cfg.Cache.DSN == "" {
		return fmt.Errorf("cache.dsn is required when cache.store is 'sqlite'")
	}

	return nil
}

// NewClientFromConfig builds an HTTPClient from the registry section of a
// config. Extra options are applied after the config-derived ones, so they
// win on conflict.
func NewClientFromConfig(cfg *Config, opts ...Option) (*HTTPClient, error) {
	base := []Option{
		WithTimeout(cfg.Registry.Timeout),
		WithMaxParallel(cfg.Registry.MaxParallel),
		WithMaxSchemaSize(cfg.Registry.MaxSchemaSize),
	}
	if cfg.Registry.Username != "" {
		base = append(base, WithBasicAuth(cfg.Registry.Username, cfg.Registry.Password))
	}
	if cfg.Registry.BearerToken != "" {
		base = append(base, WithBearerToken(cfg.Registry.BearerToken))
	}
	if cfg.Registry.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.Registry.UserAgent))
	}
	return NewHTTPClient(cfg.Registry.URL, append(base, opts...)...)
}

// NewLogger builds a zerolog logger from a logging config. Unknown levels
// fall back to info.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger().Level(level)
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
