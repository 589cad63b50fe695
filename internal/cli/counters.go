package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"raccolta/internal/domain/counter"
)

// NewCountersCommand creates the counters command group. Reservations live
// in the memory of a running agent, so they are taken through the local API
// of "raccolta serve" and not from here.
func NewCountersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Inspect and manage document numbering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCounters(cmd, rootOpts)
		},
	}
	cmd.AddCommand(newResetCommand(rootOpts))
	return cmd
}

func listCounters(cmd *cobra.Command, rootOpts *RootOptions) error {
	ctx := cmd.Context()
	a, _, err := openApp(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Counters.Stats(ctx)
	if err != nil {
		return err
	}
	return newFormatter(rootOpts, cmd.OutOrStdout()).Print(stats, func(w io.Writer) {
		fmt.Fprintf(w, "agent %d (%s)\n", a.Counters.AgentID(), a.Counters.AgentCode())
		types := make([]string, 0, len(stats))
		for t := range stats {
			types = append(types, t)
		}
		slices.Sort(types)
		for _, t := range types {
			fmt.Fprintf(w, "  %s\n", counterLine(stats[t], a.Counters.FormatDocumentName))
		}
	})
}

func counterLine(s counter.Stat, format func(string, int64) string) string {
	line := fmt.Sprintf("%-20s last %s", s.DocType, format(s.DocType, s.Value))
	if s.HasReserved {
		line += fmt.Sprintf("  (%d reserved up to %d)", s.Remaining, s.ReservedUntil)
	}
	return line
}

func newResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset <doc-type>",
		Short: "Delete a counter (debug only: numbers may be issued twice)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset %s without --yes", args[0])
			}
			ctx := cmd.Context()
			a, _, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Counters.ResetCounter(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "counter %s reset\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
