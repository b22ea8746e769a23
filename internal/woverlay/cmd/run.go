package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-overlay/internal/woverlay/app"
	"github.com/wrale/wrale-overlay/internal/woverlay/logging"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the notification source and display notifications",
		Long: `Run the overlay client until interrupted. The client reconnects whenever
the source goes away and shows a connection-lost banner in the meantime.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(o.cfg.Log, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(o.cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to start")
				return err
			}
			return a.Run(ctx)
		},
	}
}
