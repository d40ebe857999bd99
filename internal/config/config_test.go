package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podman-mcp.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name            string
		yaml            string
		wantHost        string
		wantPort        int
		wantURL         string
		wantToolTimeout time.Duration
		wantErr         bool
	}{
		{
			name:            "empty file uses defaults",
			yaml:            "",
			wantHost:        "127.0.0.1",
			wantPort:        4000,
			wantURL:         "unix:///run/podman/podman.sock",
			wantToolTimeout: 60 * time.Second,
		},
		{
			name:            "custom values override defaults",
			yaml:            "host: 0.0.0.0\nport: 9090\nruntime:\n  url: tcp://10.0.0.5:8080\ndispatch:\n  tool_timeout: 5s\n",
			wantHost:        "0.0.0.0",
			wantPort:        9090,
			wantURL:         "tcp://10.0.0.5:8080",
			wantToolTimeout: 5 * time.Second,
		},
		{
			name:    "invalid yaml returns error",
			yaml:    "invalid: yaml: [[[",
			wantErr: true,
		},
		{
			name:    "invalid values return error",
			yaml:    "port: 70000\n",
			wantErr: true,
		},
	}

	t.Setenv("CONTAINER_HOST", "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.Runtime.URL != tt.wantURL {
				t.Errorf("Runtime.URL = %q, want %q", cfg.Runtime.URL, tt.wantURL)
			}
			if cfg.Dispatch.ToolTimeout != tt.wantToolTimeout {
				t.Errorf("Dispatch.ToolTimeout = %v, want %v", cfg.Dispatch.ToolTimeout, tt.wantToolTimeout)
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("CONTAINER_HOST", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoint != "/mcp" {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, "/mcp")
	}
	if cfg.Addr() != "127.0.0.1:4000" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:4000")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PODMAN_MCP_PORT", "5050")
	t.Setenv("PODMAN_MCP_DISPATCH_RETRY_ATTEMPTS", "3")
	t.Setenv("PODMAN_MCP_STORAGE_PATH", "/tmp/journal.db")
	t.Setenv("PODMAN_MCP_LOG_LEVEL", "debug")
	t.Setenv("CONTAINER_HOST", "unix:///run/user/1000/podman/podman.sock")

	cfg, err := Load(writeConfig(t, "port: 9090\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 5050 {
		t.Errorf("Port = %d, want 5050", cfg.Port)
	}
	if cfg.Dispatch.RetryAttempts != 3 {
		t.Errorf("Dispatch.RetryAttempts = %d, want 3", cfg.Dispatch.RetryAttempts)
	}
	if cfg.Storage.Path != "/tmp/journal.db" {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, "/tmp/journal.db")
	}
	if cfg.Runtime.URL != "unix:///run/user/1000/podman/podman.sock" {
		t.Errorf("Runtime.URL = %q", cfg.Runtime.URL)
	}
	level, _ := cfg.Log.SlogLevel()
	if level != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level)
	}
}

func TestLoad_RuntimeURLBeatsContainerHost(t *testing.T) {
	t.Setenv("CONTAINER_HOST", "unix:///a.sock")
	t.Setenv("PODMAN_MCP_RUNTIME_URL", "tcp://localhost:8888")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runtime.URL != "tcp://localhost:8888" {
		t.Errorf("Runtime.URL = %q, want %q", cfg.Runtime.URL, "tcp://localhost:8888")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"endpoint without slash", func(c *Config) { c.Endpoint = "mcp" }, "must start with /"},
		{"empty runtime url", func(c *Config) { c.Runtime.URL = "" }, "runtime.url is required"},
		{"zero tool timeout", func(c *Config) { c.Dispatch.ToolTimeout = 0 }, "tool_timeout"},
		{"negative retries", func(c *Config) { c.Dispatch.RetryAttempts = -1 }, "retry_attempts"},
		{"zero concurrency", func(c *Config) { c.Dispatch.MaxBatchConcurrency = 0 }, "max_batch_concurrency"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
