package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/whetherapp/whether-backend/internal/errs"
)

func VibeCmd() *cobra.Command {
	vibeCmd := &cobra.Command{
		Use:   "vibe",
		Short: "Record or fetch vibes",
	}

	vibeCmd.AddCommand(&cobra.Command{
		Use:   "add [text...]",
		Short: "Append a vibe to the log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(args, " ")
			if err := a.Vibes.Record(cmd.Context(), text); err != nil {
				return fmt.Errorf("failed to record vibe: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s vibe recorded\n", color.New(color.FgGreen).Sprint("✓"))
			return nil
		},
	})

	vibeCmd.AddCommand(&cobra.Command{
		Use:   "random",
		Short: "Print one vibe chosen at random",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			vibe, err := a.Vibes.Random(cmd.Context())
			if errors.Is(err, errs.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgYellow).Sprint("No vibes found."))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to fetch vibe: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), vibe)
			return nil
		},
	})

	vibeCmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print how many vibes are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Vibes.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count vibes: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d vibes\n", n)
			return nil
		},
	})

	return vibeCmd
}
