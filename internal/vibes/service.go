// Package vibes stores short free-text "vibes" in an append-only column and
// hands one back at random.
package vibes

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/store"
)

// RangeFor returns the vibe log's range on the given sheet: column A from row 2 down.
func RangeFor(sheet string) string {
	return sheet + "!A2:A"
}

// Recorder is notified after each successfully appended vibe.
type Recorder interface {
	VibeRecorded()
}

type Service struct {
	store    store.Adapter
	rangeRef string
	pick     func(n int) int
	recorder Recorder
}

func NewService(adapter store.Adapter, sheet string) *Service {
	return &Service{
		store:    adapter,
		rangeRef: RangeFor(sheet),
		pick:     rand.Intn,
	}
}

// WithRecorder attaches r to observe recorded vibes.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Record appends text as a new entry. Duplicates are kept.
func (s *Service) Record(ctx context.Context, text string) error {
	if text == "" {
		return errs.InvalidInput("Missing vibe")
	}

	if err := s.store.AppendRow(ctx, s.rangeRef, []string{text}); err != nil {
		return errs.Upstream("failed to append vibe", err)
	}

	log.Debug().Int("length", len(text)).Msg("Recorded vibe")

	if s.recorder != nil {
		s.recorder.VibeRecorded()
	}
	return nil
}

// Random returns one stored entry chosen uniformly. Rows blanked by hand in
// the sheet are skipped.
func (s *Service) Random(ctx context.Context) (string, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errs.NotFound("No vibes found")
	}

	return entries[s.pick(len(entries))], nil
}

// Count returns the number of non-blank entries in the log.
func (s *Service) Count(ctx context.Context) (int, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *Service) entries(ctx context.Context) ([]string, error) {
	rows, err := s.store.ReadRange(ctx, s.rangeRef)
	if err != nil {
		return nil, errs.Upstream("failed to read vibes", err)
	}

	entries := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			entries = append(entries, row[0])
		}
	}
	return entries, nil
}
