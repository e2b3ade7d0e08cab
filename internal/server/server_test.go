package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/whetherapp/whether-backend/internal/observability"
	"github.com/whetherapp/whether-backend/internal/store"
	"github.com/whetherapp/whether-backend/internal/tally"
	"github.com/whetherapp/whether-backend/internal/vibes"
	"github.com/whetherapp/whether-backend/internal/weather"
)

const allowedOrigin = "https://duck.oscarmcglone.com"

type brokenStore struct{}

func (brokenStore) ReadRange(context.Context, string) ([][]string, error) {
	return nil, errors.New("oauth2: token expired and refresh failed")
}

func (brokenStore) WriteRange(context.Context, string, [][]string) error {
	return errors.New("oauth2: token expired and refresh failed")
}

func (brokenStore) AppendRow(context.Context, string, []string) error {
	return errors.New("oauth2: token expired and refresh failed")
}

type testEnv struct {
	srv     *Server
	backing store.Adapter
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T, backing store.Adapter) *testEnv {
	t.Helper()

	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClock()
	srv := NewServer(Options{
		Addr:           ":0",
		AllowedOrigins: []string{"https://oscarmcglone.com", allowedOrigin},
		Votes:          tally.NewService(backing, "WhetherAppVotes").WithRecorder(metrics),
		Vibes:          vibes.NewService(backing, "WhetherAppVibes").WithRecorder(metrics),
		Metrics:        metrics,
		Clock:          clock,
	})
	return &testEnv{srv: srv, backing: backing, metrics: metrics, clock: clock}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) votes(t *testing.T) map[string]int {
	t.Helper()
	rec := e.do(http.MethodGet, "/getvotes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var counts map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	return counts
}

func TestHealthIgnoresStoreAndOrigin(t *testing.T) {
	env := newTestEnv(t, brokenStore{})

	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = env.do(http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthReadableFromAllowedOrigin(t *testing.T) {
	env := newTestEnv(t, brokenStore{})

	rec := env.do(http.MethodGet, "/health", "", "Origin", allowedOrigin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = env.do(http.MethodOptions, "/health", "",
		"Origin", allowedOrigin,
		"Access-Control-Request-Method", "GET")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestGetVotesOnEmptyStore(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	counts := env.votes(t)
	assert.Len(t, counts, weather.Count)
	for _, c := range weather.Categories {
		assert.Equal(t, 0, counts[c.String()])
	}
}

func TestVoteThenTally(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodPost, "/vote", `{"weatherType":"storm"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Vote recorded successfully", rec.Body.String())

	counts := env.votes(t)
	assert.Equal(t, 1, counts["storm"])
	assert.Equal(t, 0, counts["sun"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.VotesRecorded.WithLabelValues("storm")))
}

func TestVoteValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing field", `{}`, "Missing weatherType"},
		{"empty body", ``, "Missing weatherType"},
		{"empty value", `{"weatherType":""}`, "Missing weatherType"},
		{"unknown category", `{"weatherType":"not-a-category"}`, "Invalid weatherType"},
		{"wrong case", `{"weatherType":"Rain"}`, "Invalid weatherType"},
		{"malformed json", `{"weatherType":`, "Invalid JSON"},
		{"wrong type", `{"weatherType":3}`, "Invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, store.NewMemory())

			rec := env.do(http.MethodPost, "/vote", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())

			for label, n := range env.votes(t) {
				assert.Zero(t, n, label)
			}
		})
	}
}

func TestUpstreamFailuresAre500WithoutDetail(t *testing.T) {
	env := newTestEnv(t, brokenStore{})

	tests := []struct {
		method, path, body, want string
	}{
		{http.MethodPost, "/vote", `{"weatherType":"sun"}`, "Failed to record vote"},
		{http.MethodGet, "/getvotes", "", "Failed to retrieve votes"},
		{http.MethodPost, "/vibe", `{"vibe":"chilly"}`, "Failed to record vibe"},
		{http.MethodGet, "/getvibe", "", "Failed to retrieve vibe"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "oauth2")
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.UpstreamErrors.WithLabelValues("record_vote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.UpstreamErrors.WithLabelValues("get_vibe")))
}

func TestVibeRoundTrip(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodGet, "/getvibe", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No vibes found", rec.Body.String())

	rec = env.do(http.MethodPost, "/vibe", `{"vibe":"drizzly but hopeful"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Vibe recorded successfully", rec.Body.String())

	rec = env.do(http.MethodGet, "/getvibe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body vibeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "drizzly but hopeful", body.Vibe)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.VibesRecorded))
}

func TestVibeRequiresText(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	for _, body := range []string{`{}`, `{"vibe":""}`, ``} {
		rec := env.do(http.MethodPost, "/vibe", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Missing vibe", rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/getvibe", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSAllowedOrigin(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodGet, "/getvotes", "", "Origin", allowedOrigin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodOptions, "/vote", "",
		"Origin", allowedOrigin,
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Content-Type")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodPost, "/vote", `{"weatherType":"sun"}`, "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodOptions, "/vote", "", "Origin", "https://evil.example", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, 0, env.votes(t)["sun"])
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	rec := env.do(http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	rec = env.do(http.MethodGet, "/health", "", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestWrongMethodAndUnknownPath(t *testing.T) {
	env := newTestEnv(t, store.NewMemory())

	assert.Equal(t, http.StatusMethodNotAllowed, env.do(http.MethodGet, "/vote", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/nope", "").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("unmatched", "404")))
}

type slowVotes struct {
	clock *clockwork.FakeClock
}

func (s slowVotes) RecordVote(context.Context, string) error {
	s.clock.Advance(2 * time.Second)
	return nil
}

func (s slowVotes) Tally(context.Context) (tally.Counts, error) { return tally.Counts{}, nil }

func TestRequestMetricsUseRouteAndClock(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClock()
	srv := NewServer(Options{
		Votes:   slowVotes{clock: clock},
		Vibes:   vibes.NewService(store.NewMemory(), "WhetherAppVibes"),
		Metrics: metrics,
		Clock:   clock,
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vote", strings.NewReader(`{"weatherType":"sun"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/vote", "200")))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `whether_http_request_duration_seconds_sum{route="/vote"} 2`)
}

func newTracedServer(t *testing.T) (*Server, *tracetest.SpanRecorder, *bytes.Buffer) {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	backing := store.NewMemory()
	srv := NewServer(Options{
		Votes:          tally.NewService(backing, "WhetherAppVotes"),
		Vibes:          vibes.NewService(backing, "WhetherAppVibes"),
		TracerProvider: tp,
	})
	return srv, spans, &logs
}

func TestRequestsAreTracedAndLogged(t *testing.T) {
	srv, spans, logs := newTracedServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/vote", strings.NewReader(`{"weatherType":"fog"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "POST /vote", ended[0].Name())

	traceID := ended[0].SpanContext().TraceID()
	require.True(t, traceID.IsValid())
	assert.Contains(t, logs.String(), `"trace_id":"`+traceID.String()+`"`)
}

func TestIncomingTraceContextIsContinued(t *testing.T) {
	srv, spans, logs := newTracedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/getvotes", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ended[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", ended[0].Parent().SpanID().String())
	assert.Contains(t, logs.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
}
