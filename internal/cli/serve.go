package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local API, connectivity probe and automatic sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, log, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.Run(ctx)
			log.Info("agent stopped")
			_ = log.Sync()
			return err
		},
	}
}
