package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/whetherapp/whether-backend/internal/observability"
)

// Options configures NewServer. Metrics, Clock and TracerProvider are
// optional; without a TracerProvider the global one is used.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Votes          VoteService
	Vibes          VibeService
	Metrics        *observability.Metrics
	Clock          clockwork.Clock
	TracerProvider trace.TracerProvider
}

// Server exposes the vote and vibe API plus health and metrics endpoints.
type Server struct {
	httpServer *http.Server
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           newHandler(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func newHandler(opts Options) http.Handler {
	h := &handlers{votes: opts.Votes, vibes: opts.Vibes, metrics: opts.Metrics}

	router := mux.NewRouter()
	router.HandleFunc("/vote", h.recordVote).Methods(http.MethodPost)
	router.HandleFunc("/getvotes", h.getVotes).Methods(http.MethodGet)
	router.HandleFunc("/vibe", h.recordVibe).Methods(http.MethodPost)
	router.HandleFunc("/getvibe", h.getVibe).Methods(http.MethodGet)
	router.HandleFunc("/health", health).Methods(http.MethodGet, http.MethodHead)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	var handler http.Handler = withCORS(opts.AllowedOrigins, router)
	handler = withLogging(router, opts.Clock, opts.Metrics, handler)
	handler = withRequestID(handler)

	otelOpts := []otelhttp.Option{otelhttp.WithPropagators(propagation.TraceContext{})}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	return otelhttp.NewHandler(handler, "whether-api", otelOpts...)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
