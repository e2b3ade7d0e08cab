// Package tally keeps per-category weather vote counts in a single fixed-width
// row of the backing store.
//
// RecordVote is a plain read-modify-write of the whole row with no locking or
// version check. Two concurrent votes can both read the same counts and the
// later write wins, losing an increment. Counts are therefore approximate under
// contention.
package tally

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/store"
	"github.com/whetherapp/whether-backend/internal/weather"
)

// Row holds one count per weather.Categories entry, in the same order.
type Row [weather.Count]int

// Counts maps each category label to its vote count.
type Counts map[string]int

// RangeFor returns the tally row's range on the given sheet: row 2, columns A to H.
func RangeFor(sheet string) string {
	return sheet + "!A2:H2"
}

// Recorder is notified after each successful vote.
type Recorder interface {
	VoteRecorded(category weather.Category)
}

type Service struct {
	store    store.Adapter
	rangeRef string
	recorder Recorder
}

func NewService(adapter store.Adapter, sheet string) *Service {
	return &Service{store: adapter, rangeRef: RangeFor(sheet)}
}

// WithRecorder attaches r to observe recorded votes.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// RecordVote adds one vote for the category with the given label.
func (s *Service) RecordVote(ctx context.Context, label string) error {
	if label == "" {
		return errs.InvalidInput("Missing weatherType")
	}
	category, ok := weather.Parse(label)
	if !ok {
		return errs.InvalidInput("Invalid weatherType")
	}

	row, err := s.read(ctx)
	if err != nil {
		return err
	}

	row[category.Index()]++

	if err := s.store.WriteRange(ctx, s.rangeRef, [][]string{row.cells()}); err != nil {
		return errs.Upstream("failed to write tally row", err)
	}

	log.Debug().
		Str("category", category.String()).
		Int("count", row[category.Index()]).
		Msg("Recorded vote")

	if s.recorder != nil {
		s.recorder.VoteRecorded(category)
	}
	return nil
}

// Tally returns the current count for every category. It never writes.
func (s *Service) Tally(ctx context.Context) (Counts, error) {
	row, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return row.Counts(), nil
}

func (s *Service) read(ctx context.Context) (Row, error) {
	rows, err := s.store.ReadRange(ctx, s.rangeRef)
	if err != nil {
		return Row{}, errs.Upstream("failed to read tally row", err)
	}

	var first []string
	if len(rows) > 0 {
		first = rows[0]
	}
	return ParseRow(first)
}

// ParseRow converts stored cells into counts. Missing and blank cells are zero;
// anything else that isn't a non-negative integer is reported as an upstream
// error so a corrupted row is never silently overwritten.
func ParseRow(cells []string) (Row, error) {
	var row Row
	for i := range row {
		if i >= len(cells) {
			break
		}
		raw := strings.TrimSpace(cells[i])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			log.Error().
				Str("category", weather.Categories[i].String()).
				Str("cell", cells[i]).
				Msg("Tally cell is not a vote count")
			return Row{}, errs.Upstream("malformed tally cell", err)
		}
		row[i] = n
	}
	return row, nil
}

func (r Row) cells() []string {
	out := make([]string, len(r))
	for i, n := range r {
		out[i] = strconv.Itoa(n)
	}
	return out
}

func (r Row) Counts() Counts {
	counts := make(Counts, len(r))
	for i, c := range weather.Categories {
		counts[c.String()] = r[i]
	}
	return counts
}
