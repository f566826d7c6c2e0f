package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/config"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
	"github.com/marmos91/fotoprobe/pkg/server"
)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured session over FETCH",
		Long: `Expose the configured session to remote fotoprobe clients over the FETCH
protocol, together with the Prometheus endpoint when metrics are enabled.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	m := config.InitializeMetrics(cfg)

	err := config.RunSession(ctx, cfg, m.Content, func(ctx context.Context, s retrieval.Session) error {
		adapters, err := config.CreateAdapters(cfg, s, m.Fetch)
		if err != nil {
			return err
		}

		srv := server.New(cfg.Server.ShutdownTimeout)
		for _, a := range adapters {
			if err := srv.AddAdapter(a); err != nil {
				return err
			}
		}
		srv.SetMetricsServer(m.Server)

		logger.Info("Serving %s session, press Ctrl+C to stop", cfg.Session.Type)
		return srv.Serve(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
