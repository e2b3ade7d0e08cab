package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/observability"
	"github.com/whetherapp/whether-backend/internal/tally"
)

// VoteService is the subset of tally.Service the API needs.
type VoteService interface {
	RecordVote(ctx context.Context, label string) error
	Tally(ctx context.Context) (tally.Counts, error)
}

// VibeService is the subset of vibes.Service the API needs.
type VibeService interface {
	Record(ctx context.Context, text string) error
	Random(ctx context.Context) (string, error)
}

type voteRequest struct {
	WeatherType string `json:"weatherType"`
}

type vibeRequest struct {
	Vibe string `json:"vibe"`
}

type vibeResponse struct {
	Vibe string `json:"vibe"`
}

type handlers struct {
	votes   VoteService
	vibes   VibeService
	metrics *observability.Metrics
}

// recordVote handles POST /vote
func (h *handlers) recordVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.votes.RecordVote(r.Context(), req.WeatherType); err != nil {
		h.fail(w, r, err, "record_vote", "Failed to record vote")
		return
	}

	writeText(w, http.StatusOK, "Vote recorded successfully")
}

// getVotes handles GET /getvotes
func (h *handlers) getVotes(w http.ResponseWriter, r *http.Request) {
	counts, err := h.votes.Tally(r.Context())
	if err != nil {
		h.fail(w, r, err, "get_votes", "Failed to retrieve votes")
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

// recordVibe handles POST /vibe
func (h *handlers) recordVibe(w http.ResponseWriter, r *http.Request) {
	var req vibeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.vibes.Record(r.Context(), req.Vibe); err != nil {
		h.fail(w, r, err, "record_vibe", "Failed to record vibe")
		return
	}

	writeText(w, http.StatusOK, "Vibe recorded successfully")
}

// getVibe handles GET /getvibe
func (h *handlers) getVibe(w http.ResponseWriter, r *http.Request) {
	vibe, err := h.vibes.Random(r.Context())
	if err != nil {
		h.fail(w, r, err, "get_vibe", "Failed to retrieve vibe")
		return
	}

	writeJSON(w, http.StatusOK, vibeResponse{Vibe: vibe})
}

// health handles GET /health. It never touches the backing store.
func health(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

// fail maps err onto a status code. Upstream details are logged, never sent.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, operation, failureMessage string) {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		writeText(w, http.StatusBadRequest, publicMessage(err))
	case errs.KindNotFound:
		writeText(w, http.StatusNotFound, publicMessage(err))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("operation", operation).Msg(failureMessage)
		if h.metrics != nil {
			h.metrics.UpstreamErrors.WithLabelValues(operation).Inc()
		}
		writeText(w, http.StatusInternalServerError, failureMessage)
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v zero so the
// service reports the missing field.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func publicMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return http.StatusText(http.StatusBadRequest)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
