package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/whetherapp/whether-backend/internal/app"
)

// RootCmd builds the command tree. Running it without a subcommand serves the API.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "whether",
		Short: "Whether - weather votes and vibes backed by a spreadsheet",
		Long: `Whether records weather-type votes and short "vibe" strings in a
spreadsheet and serves them over a small JSON API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.SetupEnvironment()
		},
		RunE: runServe,
	}

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(VotesCmd())
	rootCmd.AddCommand(VibeCmd())
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("addr", a.Config.Addr()).Str("backend", a.Config.Backend).Msg("Starting Whether API")
	return a.Serve(ctx)
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := app.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open store")
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return a, nil
}
