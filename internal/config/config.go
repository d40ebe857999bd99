package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PODMAN_MCP_PORT.
const EnvPrefix = "PODMAN_MCP_"

// RuntimeConfig locates the container runtime API.
type RuntimeConfig struct {
	URL        string        `yaml:"url" env:"URL"`
	APIVersion string        `yaml:"api_version" env:"API_VERSION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DispatchConfig tunes tool execution.
type DispatchConfig struct {
	ToolTimeout         time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT"`
	RetryAttempts       int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	RetryBackoff        time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	MaxBatchConcurrency int           `yaml:"max_batch_concurrency" env:"MAX_BATCH_CONCURRENCY"`
}

// StorageConfig holds the invocation journal settings. An empty path
// disables the journal.
type StorageConfig struct {
	Path      string        `yaml:"path" env:"PATH"`
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Config holds the server configuration loaded from podman-mcp.yaml.
type Config struct {
	Host      string         `yaml:"host" env:"HOST"`
	Port      int            `yaml:"port" env:"PORT"`
	Endpoint  string         `yaml:"endpoint" env:"ENDPOINT"`
	BodyLimit int            `yaml:"body_limit" env:"BODY_LIMIT"`
	Runtime   RuntimeConfig  `yaml:"runtime" envPrefix:"RUNTIME_"`
	Dispatch  DispatchConfig `yaml:"dispatch" envPrefix:"DISPATCH_"`
	Storage   StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Log       LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      4000,
		Endpoint:  "/mcp",
		BodyLimit: 4 * 1024 * 1024,
		Runtime: RuntimeConfig{
			URL:     "unix:///run/podman/podman.sock",
			Timeout: 30 * time.Second,
		},
		Dispatch: DispatchConfig{
			ToolTimeout:         60 * time.Second,
			RetryAttempts:       1,
			RetryBackoff:        250 * time.Millisecond,
			MaxBatchConcurrency: 8,
		},
		Storage: StorageConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. CONTAINER_HOST, the
// variable podman's own CLI honours, sets the runtime URL unless
// PODMAN_MCP_RUNTIME_URL is also set.
func (c *Config) ApplyEnv() error {
	var podmanEnv struct {
		ContainerHost string `env:"CONTAINER_HOST"`
	}
	if err := env.Parse(&podmanEnv); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if podmanEnv.ContainerHost != "" {
		c.Runtime.URL = podmanEnv.ContainerHost
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("endpoint %q must start with /", c.Endpoint))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("body_limit must be positive"))
	}
	if c.Runtime.URL == "" {
		errs = append(errs, fmt.Errorf("runtime.url is required"))
	}
	if c.Runtime.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("runtime.timeout must be positive"))
	}
	if c.Dispatch.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.tool_timeout must be positive"))
	}
	if c.Dispatch.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("dispatch.retry_attempts must not be negative"))
	}
	if c.Dispatch.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("dispatch.retry_backoff must not be negative"))
	}
	if c.Dispatch.MaxBatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max_batch_concurrency must be at least 1"))
	}
	if c.Storage.Retention < 0 {
		errs = append(errs, fmt.Errorf("storage.retention must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
