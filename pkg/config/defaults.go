package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/fotoprobe/pkg/adapter/fetch"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are filled into every backend map so a
//     generated sample shows all of them
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyRetrievalDefaults(&cfg.Retrieval)
	applySessionDefaults(&cfg.Session)
	applyServerDefaults(&cfg.Server)
	applyAdaptersDefaults(&cfg.Adapters)
	applyContentDefaults(&cfg.Content)
	applyCatalogDefaults(&cfg.Catalog)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyRetrievalDefaults copies retrieval.DefaultConfig into unset fields.
func applyRetrievalDefaults(cfg *RetrievalConfig) {
	def := retrieval.DefaultConfig()

	if cfg.InitialWindow == 0 {
		cfg.InitialWindow = ByteSize(def.InitialWindowBytes)
	}
	if cfg.MaxTotal == 0 {
		cfg.MaxTotal = ByteSize(def.MaxTotalBytes)
	}
	if cfg.MaxChunk == 0 {
		cfg.MaxChunk = ByteSize(def.MaxChunkBytes)
	}
	if cfg.MaxAttemptsPerChunk == 0 {
		cfg.MaxAttemptsPerChunk = def.MaxAttemptsPerChunk
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.RetrievalTimeout
	}
	if cfg.GrowthFactor == 0 {
		cfg.GrowthFactor = def.GrowthFactor
	}
	if cfg.MaxCycles == 0 {
		cfg.MaxCycles = def.MaxCycles
	}
	if cfg.BackoffInitial == 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = def.BackoffMax
	}
}

// applySessionDefaults sets session defaults.
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Type == "" {
		cfg.Type = "store"
	}

	if cfg.Store == nil {
		cfg.Store = make(map[string]any)
	}
	if cfg.Remote == nil {
		cfg.Remote = make(map[string]any)
	}
	if cfg.Telegram == nil {
		cfg.Telegram = make(map[string]any)
	}

	if _, ok := cfg.Store["chunk_limit"]; !ok {
		cfg.Store["chunk_limit"] = "0"
	}
	if _, ok := cfg.Remote["address"]; !ok {
		cfg.Remote["address"] = "localhost:7465"
	}
	if _, ok := cfg.Remote["call_timeout"]; !ok {
		cfg.Remote["call_timeout"] = "30s"
	}
	if _, ok := cfg.Telegram["call_timeout"]; !ok {
		cfg.Telegram["call_timeout"] = "30s"
	}
	if _, ok := cfg.Telegram["session_file"]; !ok {
		cfg.Telegram["session_file"] = filepath.Join(getConfigDir(), "telegram-session.json")
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// An untouched FETCH section (port 0) is enabled so `fotoprobe serve`
	// works without a config file. Users can set enabled: false.
	if !cfg.Fetch.Enabled && cfg.Fetch.Port == 0 {
		cfg.Fetch.Enabled = true
	}

	applyFetchDefaults(&cfg.Fetch)
}

// applyFetchDefaults sets FETCH adapter defaults.
func applyFetchDefaults(cfg *fetch.Config) {
	cfg.ApplyDefaults()

	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = filepath.Join(os.TempDir(), "fotoprobe-content")
	}
	if _, ok := cfg.S3["max_retries"]; !ok {
		cfg.S3["max_retries"] = 10
	}
}

// applyCatalogDefaults sets catalog defaults.
func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = filepath.Join(os.TempDir(), "fotoprobe-catalog")
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Fetch: fetch.Config{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
