package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/guild/internal/wire"
)

// WatchCmd returns the watch command
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the inbox watcher",
		Long: `Watch every mailbox and dispatch agents when new mail arrives.

The watcher reacts to filesystem events and additionally rescans on a
fixed interval, so a missed event only delays a dispatch. Runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := wire.Logger()
			log.Info().
				Str("poll_interval", wire.Config().PollInterval.String()).
				Msg("inbox watcher running")

			err := wire.Watcher().Run(ctx)
			if errors.Is(err, context.Canceled) {
				fmt.Println("watcher stopped")
				return nil
			}
			return err
		},
	}
}
