package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	gotd "github.com/gotd/td/telegram"
	"github.com/gotd/td/session"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/internal/ratelimiter"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// Config describes an MTProto user session stored on disk. Logging in is
// out of scope: the session file must already hold an authorized key.
type Config struct {
	AppID       int    `mapstructure:"app_id" validate:"required"`
	AppHash     string `mapstructure:"app_hash" validate:"required"`
	SessionFile string `mapstructure:"session_file" validate:"required"`

	// RateLimit caps API calls per second. 0 disables pacing and leaves
	// FLOOD_WAIT handling to the retry policy.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"min=0"`

	// CallTimeout bounds one API call. 0 means DefaultCallTimeout.
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"min=0"`
}

// Run connects, checks authorization and calls fn with a Session that is
// valid until fn returns.
func Run(ctx context.Context, cfg Config, fn func(ctx context.Context, s *Session) error) error {
	if cfg.AppID == 0 || cfg.AppHash == "" {
		return errors.New("telegram: app_id and app_hash are required")
	}
	if cfg.SessionFile == "" {
		return errors.New("telegram: session_file is required")
	}

	client := gotd.NewClient(cfg.AppID, cfg.AppHash, gotd.Options{
		Logger:         logger.Named("telegram"),
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return classify("telegram.auth", err)
		}
		if !status.Authorized {
			return retrieval.Errorf(retrieval.KindSessionExpired, "telegram.auth",
				"session %s is not logged in", cfg.SessionFile)
		}
		logger.Info("Telegram session ready (%s)", cfg.SessionFile)

		s := New(client.API(),
			WithRateLimiter(ratelimiter.New(cfg.RateLimit, cfg.RateBurst)),
			WithCallTimeout(cfg.CallTimeout),
		)
		defer func() { _ = s.Close() }()

		if err := fn(ctx, s); err != nil {
			return fmt.Errorf("telegram session: %w", err)
		}
		return nil
	})
}
