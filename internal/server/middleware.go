package server

import (
	"net/http"
	"slices"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/whetherapp/whether-backend/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// corsExempt paths still answer disallowed origins, just without CORS headers.
var corsExempt = []string{"/health", "/metrics"}

// withCORS enforces the origin allow-list. Requests without an Origin header
// are not cross-origin browser calls and pass through untouched.
func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")
		if !slices.Contains(allowed, origin) {
			if slices.Contains(corsExempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			zerolog.Ctx(r.Context()).Warn().Str("origin", origin).Msg("Rejected cross-origin request")
			http.Error(w, "Not allowed by CORS", http.StatusForbidden)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRequestID tags the request with an id and a logger carrying it, plus
// the trace id when the request is being traced.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logCtx := log.With().Str("request_id", id)
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			logCtx = logCtx.Str("trace_id", sc.TraceID().String())
		}
		logger := logCtx.Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

// withLogging logs each request and records it in metrics, labelled by the
// matched route template so unknown paths don't create new series.
func withLogging(router *mux.Router, clock clockwork.Clock, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clock.Now()

		route := "unmatched"
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				route = tpl
				trace.SpanFromContext(r.Context()).SetName(r.Method + " " + route)
			}
		}

		m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
			next.ServeHTTP(w, r)
		})
		elapsed := clock.Since(start)

		if metrics != nil {
			metrics.ObserveRequest(route, m.Code, elapsed)
		}

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", elapsed).
			Msg("Request completed")
	})
}
