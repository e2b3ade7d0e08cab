// Package store defines the capability the tally and vibe services need from a
// tabular backing store, plus local implementations of it.
//
// Ranges use A1 notation ("Sheet!A2:H2"). Implementations follow the Google
// Sheets values API: reads drop trailing empty cells and trailing empty rows,
// writes overwrite the addressed cells, and appends land after the last
// non-empty row inside the range's columns.
package store

import (
	"context"
	"fmt"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/rangeref"
)

// Adapter reads, overwrites and appends rows of string cells. None of the
// operations are transactional with respect to each other, and AppendRow is
// not idempotent.
type Adapter interface {
	ReadRange(ctx context.Context, rangeRef string) ([][]string, error)
	WriteRange(ctx context.Context, rangeRef string, rows [][]string) error
	AppendRow(ctx context.Context, rangeRef string, row []string) error
}

type cell struct {
	row, col int
}

// grid holds the non-empty cells of one read, keyed by absolute position.
type grid map[cell]string

// rows lays out g over ref, stopping at lastRow for open-ended ranges.
func (g grid) rows(ref rangeref.Ref, lastRow int) [][]string {
	if ref.Bounded() {
		lastRow = ref.EndRow
	}

	var out [][]string
	for r := ref.StartRow; r <= lastRow; r++ {
		row := make([]string, 0, ref.Width())
		for c := ref.StartCol; c <= ref.EndCol; c++ {
			row = append(row, g[cell{r, c}])
		}
		out = append(out, trimRow(row))
	}
	return trimRows(out)
}

func trimRow(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}

func trimRows(rows [][]string) [][]string {
	n := len(rows)
	for n > 0 && len(rows[n-1]) == 0 {
		n--
	}
	if n == 0 {
		return nil
	}
	return rows[:n]
}

// placeWrite maps rows onto absolute cells, rejecting data outside ref.
func placeWrite(ref rangeref.Ref, rows [][]string) (map[cell]string, error) {
	cells := make(map[cell]string)
	for i, row := range rows {
		for j, value := range row {
			r, c := ref.StartRow+i, ref.StartCol+j
			if !ref.Contains(r, c) {
				return nil, fmt.Errorf("value at row %d column %s lies outside %s", r, rangeref.ColumnName(c), ref)
			}
			cells[cell{r, c}] = value
		}
	}
	return cells, nil
}

// appendTarget is the row an append lands on given the last occupied row in the range.
func appendTarget(ref rangeref.Ref, lastOccupied int) int {
	return max(lastOccupied+1, ref.StartRow)
}

func parseRange(rangeRef string) (rangeref.Ref, error) {
	ref, err := rangeref.Parse(rangeRef)
	if err != nil {
		return rangeref.Ref{}, errs.Upstream("failed to parse range", err)
	}
	return ref, nil
}
