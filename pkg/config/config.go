package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/fotoprobe/pkg/adapter/fetch"
)

// Config represents the complete fotoprobe configuration.
//
// This structure captures all configurable aspects of fotoprobe including:
//   - Logging configuration
//   - Retrieval limits (window sizes, attempts, timeouts)
//   - The session used to reach media (local library, FETCH server or Telegram)
//   - Server-wide settings and metrics
//   - Protocol adapter configurations
//   - Content store and catalog backing the local library
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FOTOPROBE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend sections follow a type-plus-map pattern: the Type field selects
// an implementation and only the matching map is decoded, by the factory
// of that implementation.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Retrieval bounds every metadata retrieval
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`

	// Session selects where media bytes come from
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`

	// Content specifies the content store holding library files
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Catalog specifies the message-to-content catalog of the library
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// RetrievalConfig mirrors retrieval.Config with human-friendly units.
// Sizes accept integers or strings such as "64KiB" and "4MB".
type RetrievalConfig struct {
	InitialWindow ByteSize `mapstructure:"initial_window" yaml:"initial_window" validate:"gt=0"`
	MaxTotal      ByteSize `mapstructure:"max_total" yaml:"max_total" validate:"gt=0,gtefield=InitialWindow"`
	MaxChunk      ByteSize `mapstructure:"max_chunk" yaml:"max_chunk" validate:"gt=0"`

	MaxAttemptsPerChunk int           `mapstructure:"max_attempts_per_chunk" yaml:"max_attempts_per_chunk" validate:"gte=1"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	// GrowthFactor multiplies the window after each NeedMoreBytes
	GrowthFactor uint64 `mapstructure:"growth_factor" yaml:"growth_factor" validate:"gte=2"`
	MaxCycles    int    `mapstructure:"max_cycles" yaml:"max_cycles" validate:"gte=1"`

	BackoffInitial time.Duration `mapstructure:"backoff_initial" yaml:"backoff_initial" validate:"gte=0"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" yaml:"backoff_max" validate:"gtefield=BackoffInitial"`
}

// SessionConfig selects the retrieval.Session implementation.
type SessionConfig struct {
	// Type specifies which session implementation to use
	// Valid values: store, remote, telegram
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=store remote telegram"`

	// Store reads from the local library (content + catalog sections)
	// Only used when Type = "store"
	Store map[string]any `mapstructure:"store" yaml:"store"`

	// Remote dials a FETCH server
	// Only used when Type = "remote"
	Remote map[string]any `mapstructure:"remote" yaml:"remote"`

	// Telegram uses an authorized MTProto session file
	// Only used when Type = "telegram"
	Telegram map[string]any `mapstructure:"telegram" yaml:"telegram"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// Fetch uses the adapter's own config type to avoid duplication.
	Fetch fetch.Config `mapstructure:"fetch" yaml:"fetch"`
}

// ContentConfig specifies content store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`
	Memory     map[string]any `mapstructure:"memory" yaml:"memory"`
	S3         map[string]any `mapstructure:"s3" yaml:"s3"`
}

// CatalogConfig specifies catalog configuration.
type CatalogConfig struct {
	// Type specifies which catalog implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	Memory map[string]any `mapstructure:"memory" yaml:"memory"`
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FOTOPROBE_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath searches the default location; a missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// decodeHook converts strings into durations, byte sizes and slices. It is
// shared by viper and the per-backend map decoding.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToByteSizeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// decodeOptions decodes a backend map into out.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// FOTOPROBE_LOGGING_LEVEL=DEBUG overrides logging.level
	v.SetEnvPrefix("FOTOPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/fotoprobe/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			// Explicit path that does not exist: defaults only.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fotoprobe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fotoprobe")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
