package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/whetherapp/whether-backend/internal/errs"
)

// Memory is an in-process Adapter. Each call is atomic on its own; nothing
// spans calls.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]grid
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]grid)}
}

func (m *Memory) ReadRange(ctx context.Context, rangeRef string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Upstream("failed to read range", err)
	}
	ref, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sheet := m.sheets[ref.Sheet]
	lastRow := 0
	for c := range sheet {
		if ref.Contains(c.row, c.col) && c.row > lastRow {
			lastRow = c.row
		}
	}

	rows := sheet.rows(ref, lastRow)
	log.Debug().Str("range", rangeRef).Int("rows", len(rows)).Msg("Read range from memory store")
	return rows, nil
}

func (m *Memory) WriteRange(ctx context.Context, rangeRef string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return errs.Upstream("failed to write range", err)
	}
	ref, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	cells, err := placeWrite(ref, rows)
	if err != nil {
		return errs.Upstream("failed to write range", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(ref.Sheet, cells)
	return nil
}

func (m *Memory) AppendRow(ctx context.Context, rangeRef string, row []string) error {
	if err := ctx.Err(); err != nil {
		return errs.Upstream("failed to append row", err)
	}
	ref, err := parseRange(rangeRef)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lastRow := 0
	for c := range m.sheets[ref.Sheet] {
		if c.col >= ref.StartCol && c.col <= ref.EndCol && c.row >= ref.StartRow && c.row > lastRow {
			lastRow = c.row
		}
	}

	target := appendTarget(ref, lastRow)
	cells := make(map[cell]string, len(row))
	for j, value := range row {
		cells[cell{target, ref.StartCol + j}] = value
	}
	m.set(ref.Sheet, cells)
	return nil
}

func (m *Memory) set(sheet string, cells map[cell]string) {
	g, ok := m.sheets[sheet]
	if !ok {
		g = make(grid)
		m.sheets[sheet] = g
	}
	for c, value := range cells {
		if value == "" {
			delete(g, c)
			continue
		}
		g[c] = value
	}
}
