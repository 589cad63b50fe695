package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"raccolta/internal/infrastructure/backup"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore a compressed snapshot",
	}
	cmd.AddCommand(newExportCommand(rootOpts))
	cmd.AddCommand(newImportCommand(rootOpts))
	return cmd
}

func newExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write counters and documents to a zstd snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.ExportSnapshot(ctx)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := backup.Write(f, s); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(map[string]any{
				"file":     args[0],
				"counters": len(s.Counters.Counters),
				"orders":   len(s.Orders),
				"pickings": len(s.Pickings),
				"ddts":     len(s.DeliveryNotes),
			}, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %s: %d counters, %d orders, %d pickings, %d ddts\n",
					args[0], len(s.Counters.Counters), len(s.Orders), len(s.Pickings), len(s.DeliveryNotes))
			})
		},
	}
}

func newImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore counters from a snapshot; counters never go backwards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			s, err := backup.ReadSnapshot(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.ImportSnapshot(ctx, s)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(map[string]int{"updated": n}, func(w io.Writer) {
				fmt.Fprintf(w, "%d counters updated\n", n)
			})
		},
	}
}
