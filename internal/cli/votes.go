package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/whetherapp/whether-backend/internal/tally"
	"github.com/whetherapp/whether-backend/internal/weather"
)

func VotesCmd() *cobra.Command {
	votesCmd := &cobra.Command{
		Use:   "votes",
		Short: "Show the current vote tally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.Votes.Tally(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read votes: %w", err)
			}
			printTally(cmd.OutOrStdout(), counts)
			return nil
		},
	}

	votesCmd.AddCommand(&cobra.Command{
		Use:   "cast [category]",
		Short: "Record one vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Votes.RecordVote(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to record vote: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s vote recorded for %s\n", color.New(color.FgGreen).Sprint("✓"), args[0])
			return nil
		},
	})

	return votesCmd
}

// printTally writes counts in column order, highlighting the leader.
func printTally(out io.Writer, counts tally.Counts) {
	leader, top := "", 0
	for _, c := range weather.Categories {
		if n := counts[c.String()]; n > top {
			leader, top = c.String(), n
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tVOTES")
	fmt.Fprintln(w, "--------\t-----")
	for _, c := range weather.Categories {
		label := c.String()
		if label == leader {
			label = color.New(color.FgYellow, color.Bold).Sprint(label)
		}
		fmt.Fprintf(w, "%s\t%d\n", label, counts[c.String()])
	}
	w.Flush()
}
