package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove synced documents older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Sync.CleanupSyncData(ctx, days)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(map[string]int{"removed": n}, func(w io.Writer) {
				fmt.Fprintf(w, "%d documents removed\n", n)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "age in days of synced documents to remove")
	return cmd
}
