// Package config provides YAML settings for the pixelserve host.
//
// Settings are layered: built-in defaults, then the YAML file, then
// PIXELSERVE_* environment variables. A missing file is not an error.
//
// Example configuration:
//
//	server:
//	  directory: ${HOME}/gifs
//	  port: 8000
//	  bind_address: 0.0.0.0
//	  auto_start: true
//	  startup_timeout: 10s
//	  stop_timeout: 5s
//	  rate_limit:
//	    requests_per_second: 20
//	    burst: 40
//
//	logging:
//	  level: info
//	  format: text
//	  file: ${HOME}/.pixelserve/pixelserve.log
//
// Environment overrides use the section and field names, for example
// PIXELSERVE_SERVER_PORT=8080 or PIXELSERVE_LOGGING_LEVEL=debug.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PIXELSERVE"

const (
	// MinPort and MaxPort bound the configured port. Privileged ports are
	// refused.
	MinPort = 1024
	MaxPort = 65535

	defaultPort           = 8000
	defaultBindAddress    = "127.0.0.1"
	defaultStartupTimeout = 10 * time.Second
	defaultStopTimeout    = 5 * time.Second
)

// Config is the root settings structure.
//
// It maps directly to the YAML file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig holds the file server settings.
type ServerConfig struct {
	// Directory is the folder to serve. Defaults to the working directory.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Directory string `yaml:"directory" envconfig:"DIRECTORY"`

	// Port is the TCP port, 1024-65535. Defaults to 8000.
	Port int `yaml:"port" envconfig:"PORT"`

	// BindAddress is the listen address. Defaults to 127.0.0.1.
	BindAddress string `yaml:"bind_address" envconfig:"BIND_ADDRESS"`

	// AutoStart starts the server as soon as the host launches.
	AutoStart bool `yaml:"auto_start" envconfig:"AUTO_START"`

	// StartupTimeout bounds how long a start waits for the socket to bind.
	StartupTimeout Duration `yaml:"startup_timeout" envconfig:"STARTUP_TIMEOUT"`

	// StopTimeout bounds how long a stop waits for in-flight requests.
	StopTimeout Duration `yaml:"stop_timeout" envconfig:"STOP_TIMEOUT"`

	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig limits requests per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig holds the host logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text

	// File appends logs to this path instead of stderr.
	// Supports environment variable substitution.
	File string `yaml:"file" envconfig:"FILE"`
}

// Duration wraps time.Duration for YAML and environment decoding.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Decode implements envconfig.Decoder for Duration.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Directory:      ".",
			Port:           defaultPort,
			BindAddress:    defaultBindAddress,
			StartupTimeout: Duration(defaultStartupTimeout),
			StopTimeout:    Duration(defaultStopTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads settings from path, applies environment overrides, and
// validates the result.
//
// An empty path or a file that does not exist yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses YAML settings over the defaults and validates them.
// Environment overrides are not applied; use [Load] for that.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	dir, err := expandEnvVars(c.Server.Directory)
	if err != nil {
		return fmt.Errorf("server.directory: %w", err)
	}
	c.Server.Directory = dir

	file, err := expandEnvVars(c.Logging.File)
	if err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	c.Logging.File = file

	return c.Validate()
}

// Validate checks value ranges. It does not check that the directory
// exists; the server reports that when it starts.
func (c *Config) Validate() error {
	s := c.Server

	if s.Directory == "" {
		return errors.New("server.directory is required")
	}
	if s.Port < MinPort || s.Port > MaxPort {
		return fmt.Errorf("server.port must be between %d and %d, got %d", MinPort, MaxPort, s.Port)
	}
	if s.BindAddress == "" {
		return errors.New("server.bind_address is required")
	}
	if s.StartupTimeout.Duration() <= 0 {
		return fmt.Errorf("server.startup_timeout must be positive, got %s", s.StartupTimeout.Duration())
	}
	if s.StopTimeout.Duration() <= 0 {
		return fmt.Errorf("server.stop_timeout must be positive, got %s", s.StopTimeout.Duration())
	}
	if s.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second cannot be negative, got %v", s.RateLimit.RequestsPerSecond)
	}
	if s.RateLimit.RequestsPerSecond > 0 && s.RateLimit.Burst < 1 {
		return fmt.Errorf("server.rate_limit.burst must be at least 1 when rate limiting, got %d", s.RateLimit.Burst)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}
