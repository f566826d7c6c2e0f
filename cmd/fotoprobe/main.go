// Command fotoprobe reads photo metadata from messages without downloading
// whole files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/config"
)

var version = "dev"

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	cmd := newRootCommand()
	ctx = withSignalCancel(ctx)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Sync()
		return 1
	}
	logger.Sync()
	return 0
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "fotoprobe",
		Short: "Extract EXIF metadata from chat media with ranged reads",
		Long: `fotoprobe reads the first bytes of a photo attachment, grows the window
only when the metadata block lies further in, and reports camera, lens,
exposure and location details.

Media comes from the session configured under "session": the local library,
a remote FETCH server or a Telegram account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default $XDG_CONFIG_HOME/fotoprobe/config.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
		return cfg, nil
	}

	cmd.AddCommand(
		newServeCommand(load),
		newProbeCommand(load),
		newIngestCommand(load),
		newListCommand(load),
		newRemoveCommand(load),
		newInitCommand(),
		newVersionCommand(),
	)
	return cmd
}

// configLoader loads the configuration selected by the root --config flag.
type configLoader func() (*config.Config, error)

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
