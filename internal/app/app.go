package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/whetherapp/whether-backend/internal/observability"
	"github.com/whetherapp/whether-backend/internal/server"
	"github.com/whetherapp/whether-backend/internal/store"
	"github.com/whetherapp/whether-backend/internal/tally"
	"github.com/whetherapp/whether-backend/internal/vibes"
)

// App wires the configured store to the tally and vibe services.
type App struct {
	Config Config
	Store  store.Adapter
	Votes  *tally.Service
	Vibes  *vibes.Service

	closer io.Closer
}

func New(ctx context.Context, cfg Config) (*App, error) {
	adapter, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("backend", cfg.Backend).
		Str("vote_sheet", cfg.VoteSheet).
		Str("vibe_sheet", cfg.VibeSheet).
		Msg("Store initialized successfully")

	return &App{
		Config: cfg,
		Store:  adapter,
		Votes:  tally.NewService(adapter, cfg.VoteSheet),
		Vibes:  vibes.NewService(adapter, cfg.VibeSheet),
		closer: closer,
	}, nil
}

func (a *App) Close() error {
	return a.closer.Close()
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	tp, err := observability.NewTracerProvider(a.Config.TracesExporter, os.Stdout)
	if err != nil {
		return err
	}
	observability.InstallTracing(tp)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	metrics := observability.NewMetrics()
	a.Votes.WithRecorder(metrics)
	a.Vibes.WithRecorder(metrics)

	srv := server.NewServer(server.Options{
		Addr:           a.Config.Addr(),
		AllowedOrigins: a.Config.AllowedOrigins,
		Votes:          a.Votes,
		Vibes:          a.Vibes,
		Metrics:        metrics,
		TracerProvider: tp,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", a.Config.ShutdownTimeout).Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
