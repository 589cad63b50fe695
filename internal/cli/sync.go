package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"raccolta/internal/domain/syncer"
)

type syncOptions struct {
	force       bool
	retryFailed bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending documents and counters once",
		Long: `Probe the sync endpoint and, if it answers, retry queued documents,
then push every pending document and the agent's counters.

--retry-failed first puts documents in error back to pending.
--force drops retry bookkeeping before the pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.Detector.Check(ctx) {
				return fmt.Errorf("sync endpoint unreachable")
			}
			if opts.retryFailed {
				if _, err := a.Sync.RetryFailed(ctx); err != nil {
					return err
				}
			}

			var res syncer.Result
			if opts.force {
				res, err = a.Sync.ForceSyncAll(ctx)
			} else {
				res, err = a.Sync.SyncNow(ctx)
			}
			if err != nil {
				return err
			}

			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(res, func(w io.Writer) {
				fmt.Fprintf(w, "synced: %d  errors: %d\n", res.Synced, res.Errors)
				for _, cat := range []string{syncer.CategoryOrders, syncer.CategoryPickings, syncer.CategoryDeliveryNotes, syncer.CategoryCounters} {
					d := res.Details[cat]
					fmt.Fprintf(w, "  %-9s %d synced, %d errors\n", cat, d.Synced, d.Errors)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&opts.force, "force", false, "clear the retry queue and push everything pending")
	cmd.Flags().BoolVar(&opts.retryFailed, "retry-failed", false, "reset documents in error to pending first")
	return cmd
}
