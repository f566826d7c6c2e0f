package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here; validation
// accepts both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Retrieval.MaxChunk > cfg.Retrieval.MaxTotal {
		return fmt.Errorf("retrieval: max_chunk (%s) exceeds max_total (%s)", cfg.Retrieval.MaxChunk, cfg.Retrieval.MaxTotal)
	}

	if err := cfg.Adapters.Fetch.Validate(); err != nil {
		return fmt.Errorf("adapters.fetch: %w", err)
	}

	for _, t := range cfg.Adapters.Fetch.RevokedTokens {
		for _, ok := range cfg.Adapters.Fetch.Tokens {
			if t == ok {
				return fmt.Errorf("adapters.fetch: token listed as both accepted and revoked")
			}
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Adapters.Fetch.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.Fetch.Port {
		return fmt.Errorf("server.metrics: port %d conflicts with adapters.fetch", cfg.Server.Metrics.Port)
	}

	return nil
}

// validateBackend validates a decoded backend section with struct tags.
func validateBackend(section string, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w", section, formatValidationError(err))
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
