package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show sync progress of local documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Sync.GetSyncStats(ctx)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(st, func(w io.Writer) {
				fmt.Fprintf(w, "orders: %d  pending: %d  synced: %d  errors: %d  (%d%%)\n",
					st.TotalOrders, st.PendingSync, st.Synced, st.Errors, st.SyncPercentage)
				fmt.Fprintf(w, "pickings: %d/%d synced  ddts: %d/%d synced\n",
					st.Pickings.Synced, st.Pickings.Total, st.DeliveryNotes.Synced, st.DeliveryNotes.Total)
				fmt.Fprintf(w, "retry queue: %d\n", st.QueueLength)
				if st.LastSync != nil {
					fmt.Fprintf(w, "last sync: %s\n", st.LastSync.Local().Format(time.DateTime))
				} else {
					fmt.Fprintln(w, "last sync: never")
				}
			})
		},
	}
}
