package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/fotoprobe/pkg/adapter/fetch"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalized(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Retrieval(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	r := cfg.Retrieval
	if r.InitialWindow != 64<<10 {
		t.Errorf("Expected initial window 64KiB, got %s", r.InitialWindow)
	}
	if r.MaxTotal != 4<<20 {
		t.Errorf("Expected max total 4MiB, got %s", r.MaxTotal)
	}
	if r.MaxChunk != 512<<10 {
		t.Errorf("Expected max chunk 512KiB, got %s", r.MaxChunk)
	}
	if r.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", r.Timeout)
	}
	if r.GrowthFactor != 2 || r.MaxCycles != 16 {
		t.Errorf("Expected growth 2 and 16 cycles, got %d and %d", r.GrowthFactor, r.MaxCycles)
	}
	if r.BackoffInitial != 200*time.Millisecond || r.BackoffMax != 5*time.Second {
		t.Errorf("Expected backoff 200ms..5s, got %v..%v", r.BackoffInitial, r.BackoffMax)
	}
}

func TestApplyDefaults_Session(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Session.Type != "store" {
		t.Errorf("Expected default session type 'store', got %q", cfg.Session.Type)
	}
	if cfg.Session.Remote["address"] != "localhost:7465" {
		t.Errorf("Expected default remote address, got %v", cfg.Session.Remote["address"])
	}
	wantSession := filepath.Join(xdg, "fotoprobe", "telegram-session.json")
	if cfg.Session.Telegram["session_file"] != wantSession {
		t.Errorf("Expected telegram session file %q, got %v", wantSession, cfg.Session.Telegram["session_file"])
	}
	if cfg.Session.Telegram["call_timeout"] != "30s" {
		t.Errorf("Expected telegram call_timeout '30s', got %v", cfg.Session.Telegram["call_timeout"])
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
}

func TestApplyDefaults_Content(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	want := filepath.Join(os.TempDir(), "fotoprobe-content")
	if path, ok := cfg.Content.Filesystem["path"]; !ok || path != want {
		t.Errorf("Expected default filesystem path %q, got %v", want, path)
	}
	if cfg.Content.Memory == nil {
		t.Fatal("Expected Memory map to be initialized")
	}
	if cfg.Content.S3["max_retries"] != 10 {
		t.Errorf("Expected default s3 max_retries 10, got %v", cfg.Content.S3["max_retries"])
	}
}

func TestApplyDefaults_Catalog(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Catalog.Type != "memory" {
		t.Errorf("Expected default catalog type 'memory', got %q", cfg.Catalog.Type)
	}
	want := filepath.Join(os.TempDir(), "fotoprobe-catalog")
	if cfg.Catalog.Badger["path"] != want {
		t.Errorf("Expected default badger path %q, got %v", want, cfg.Catalog.Badger["path"])
	}
}

func TestApplyDefaults_Fetch(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	f := cfg.Adapters.Fetch
	if !f.Enabled {
		t.Error("Expected FETCH enabled by default")
	}
	if f.Port != 7465 {
		t.Errorf("Expected default port 7465, got %d", f.Port)
	}
	if f.HandleTTL != 10*time.Minute {
		t.Errorf("Expected default handle TTL 10m, got %v", f.HandleTTL)
	}
	if f.MetricsLogInterval != 5*time.Minute {
		t.Errorf("Expected default metrics log interval 5m, got %v", f.MetricsLogInterval)
	}
}

func TestApplyDefaults_FetchDisabled(t *testing.T) {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Fetch: fetch.Config{Enabled: false, Port: 7466},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Adapters.Fetch.Enabled {
		t.Error("Explicitly configured FETCH adapter should stay disabled")
	}
	if cfg.Adapters.Fetch.Port != 7466 {
		t.Errorf("Expected port 7466 preserved, got %d", cfg.Adapters.Fetch.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "WARN", Format: "json", Output: "stderr"},
		Retrieval: RetrievalConfig{
			InitialWindow:       8 << 10,
			MaxAttemptsPerChunk: 1,
			Timeout:             time.Second,
		},
		Session: SessionConfig{
			Type:   "remote",
			Remote: map[string]any{"address": "10.0.0.2:7465"},
		},
		Content: ContentConfig{
			Type:       "memory",
			Filesystem: map[string]any{"path": "/srv/media"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Logging overridden: %+v", cfg.Logging)
	}
	if cfg.Retrieval.InitialWindow != 8<<10 {
		t.Errorf("Expected initial window 8KiB preserved, got %s", cfg.Retrieval.InitialWindow)
	}
	if cfg.Retrieval.MaxAttemptsPerChunk != 1 || cfg.Retrieval.Timeout != time.Second {
		t.Errorf("Retrieval overridden: %+v", cfg.Retrieval)
	}
	if cfg.Session.Type != "remote" || cfg.Session.Remote["address"] != "10.0.0.2:7465" {
		t.Errorf("Session overridden: %+v", cfg.Session)
	}
	if cfg.Session.Remote["call_timeout"] != "30s" {
		t.Errorf("Expected call_timeout filled in beside explicit address, got %v", cfg.Session.Remote["call_timeout"])
	}
	if cfg.Content.Type != "memory" || cfg.Content.Filesystem["path"] != "/srv/media" {
		t.Errorf("Content overridden: %+v", cfg.Content)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid, got: %v", err)
	}
}
