package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

content:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.Fetch.Port != 7465 {
		t.Errorf("Expected default FETCH port 7465, got %d", cfg.Adapters.Fetch.Port)
	}
	if cfg.Retrieval.InitialWindow != 64<<10 {
		t.Errorf("Expected default initial window 64KiB, got %s", cfg.Retrieval.InitialWindow)
	}
	if cfg.Session.Type != "store" {
		t.Errorf("Expected default session type 'store', got %q", cfg.Session.Type)
	}
}

func TestLoad_RetrievalUnits(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
retrieval:
  initial_window: "128KiB"
  max_total: "8 MiB"
  max_chunk: 262144
  timeout: "45s"
  backoff_initial: "100ms"
  backoff_max: "2s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Retrieval.InitialWindow != 128<<10 {
		t.Errorf("Expected initial window 128KiB, got %d", cfg.Retrieval.InitialWindow)
	}
	if cfg.Retrieval.MaxTotal != 8<<20 {
		t.Errorf("Expected max total 8MiB, got %d", cfg.Retrieval.MaxTotal)
	}
	if cfg.Retrieval.MaxChunk != 256<<10 {
		t.Errorf("Expected max chunk 256KiB, got %d", cfg.Retrieval.MaxChunk)
	}
	if cfg.Retrieval.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s, got %v", cfg.Retrieval.Timeout)
	}

	rc := cfg.Retrieval.ToRetrievalConfig()
	if rc.InitialWindowBytes != 128<<10 || rc.BackoffMax != 2*time.Second {
		t.Errorf("Unexpected retrieval config: %+v", rc)
	}
}

func TestLoad_InvalidByteSize(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
retrieval:
  initial_window: "lots"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for unparseable byte size, got nil")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing explicit path keeps us away from ~/.config/fotoprobe.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[session]
type = "remote"

[session.remote]
address = "media.example:7465"

[adapters.fetch]
enabled = true
port = 7466
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Session.Type != "remote" {
		t.Errorf("Expected session type 'remote', got %q", cfg.Session.Type)
	}
	if cfg.Session.Remote["address"] != "media.example:7465" {
		t.Errorf("Expected remote address from file, got %v", cfg.Session.Remote["address"])
	}
	if cfg.Adapters.Fetch.Port != 7466 {
		t.Errorf("Expected port 7466, got %d", cfg.Adapters.Fetch.Port)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
session:
  type: "carrier-pigeon"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown session type, got nil")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Retrieval.MaxTotal != 4<<20 {
		t.Errorf("Expected default max total 4MiB, got %s", cfg.Retrieval.MaxTotal)
	}
	if cfg.Retrieval.MaxAttemptsPerChunk != 4 {
		t.Errorf("Expected 4 attempts per chunk, got %d", cfg.Retrieval.MaxAttemptsPerChunk)
	}
	if !cfg.Adapters.Fetch.Enabled {
		t.Error("Expected FETCH adapter enabled by default")
	}
	if cfg.Catalog.Type != "memory" {
		t.Errorf("Expected default catalog 'memory', got %q", cfg.Catalog.Type)
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Error("Expected no config in an empty config home")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "fotoprobe" {
		t.Errorf("Expected parent directory 'fotoprobe', got %q", filepath.Dir(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := GetConfigDir()
	if dir != filepath.Join(xdg, "fotoprobe") {
		t.Errorf("Expected %q, got %q", filepath.Join(xdg, "fotoprobe"), dir)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("FOTOPROBE_LOGGING_LEVEL", "ERROR")
	t.Setenv("FOTOPROBE_ADAPTERS_FETCH_PORT", "5049")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

adapters:
  fetch:
    enabled: true
    port: 7465
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Fetch.Port != 5049 {
		t.Errorf("Expected port 5049 from env var, got %d", cfg.Adapters.Fetch.Port)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
		ok   bool
	}{
		{"65536", 65536, true},
		{"64KiB", 64 << 10, true},
		{"4 MiB", 4 << 20, true},
		{"1kb", 1000, true},
		{"", 0, false},
		{"many", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseByteSize(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("ParseByteSize(%q) expected error", tt.in)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if s := ByteSize(64 << 10).String(); s != "64 KiB" {
		t.Errorf("String() = %q, want '64 KiB'", s)
	}
}
