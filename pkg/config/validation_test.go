package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_LowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	if err := Validate(cfg); err != nil {
		t.Errorf("Lowercase log level should validate, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidSessionType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Session.Type = "ftp"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid session type")
	}
}

func TestValidate_InvalidContentType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Content.Type = "invalid"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid content type")
	}
}

func TestValidate_InvalidCatalogType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Catalog.Type = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unimplemented catalog type")
	}
}

func TestValidate_MaxTotalBelowInitialWindow(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Retrieval.InitialWindow = 1 << 20
	cfg.Retrieval.MaxTotal = 64 << 10

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when max_total < initial_window")
	}
	if !strings.Contains(err.Error(), "gtefield") {
		t.Errorf("Expected 'gtefield' validation error, got: %v", err)
	}
}

func TestValidate_MaxChunkAboveMaxTotal(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Retrieval.MaxTotal = 1 << 20
	cfg.Retrieval.MaxChunk = 2 << 20

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error when max_chunk > max_total")
	}
	if !strings.Contains(err.Error(), "max_chunk") {
		t.Errorf("Expected max_chunk error, got: %v", err)
	}
}

func TestValidate_GrowthFactorTooSmall(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Retrieval.GrowthFactor = 1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for growth factor 1")
	}
}

func TestValidate_BackoffMaxBelowInitial(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Retrieval.BackoffInitial = time.Second
	cfg.Retrieval.BackoffMax = 100 * time.Millisecond

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when backoff_max < backoff_initial")
	}
}

func TestValidate_InvalidFetchPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Fetch.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for port > 65535")
	}
}

func TestValidate_FetchMaxReadTooLarge(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Fetch.MaxRead = 4 << 20

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for oversized max_read")
	}
}

func TestValidate_TokenBothAcceptedAndRevoked(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.Fetch.Tokens = []string{"alpha", "beta"}
	cfg.Adapters.Fetch.RevokedTokens = []string{"beta"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for token in both lists")
	}
	if !strings.Contains(err.Error(), "revoked") {
		t.Errorf("Expected revoked token error, got: %v", err)
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = cfg.Adapters.Fetch.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for metrics port conflict")
	}

	cfg.Server.Metrics.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("Disabled metrics should not conflict, got: %v", err)
	}
}

func TestValidate_InvalidShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}
