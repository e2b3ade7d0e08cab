// Package rangeref parses and formats spreadsheet ranges in A1 notation,
// e.g. "WhetherAppVotes!A2:H2" or the open-ended "WhetherAppVibes!A2:A".
package rangeref

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref is a rectangular block of cells on one sheet. Rows and columns are 1-based.
// EndRow == 0 means the range runs to the bottom of the sheet.
type Ref struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// Parse reads "Sheet!A1", "Sheet!A1:B2", "Sheet!A2:A" or "Sheet!A:C".
// Sheet names may be wrapped in single quotes.
func Parse(s string) (Ref, error) {
	sep := strings.LastIndex(s, "!")
	if sep <= 0 || sep == len(s)-1 {
		return Ref{}, fmt.Errorf("invalid range %q: expected Sheet!Cells", s)
	}

	sheet := s[:sep]
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return Ref{}, fmt.Errorf("invalid range %q: empty sheet name", s)
	}

	cells := s[sep+1:]
	start, end, hasEnd := strings.Cut(cells, ":")

	startCol, startRow, err := parseCell(start)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if startRow == 0 {
		startRow = 1
	}

	ref := Ref{Sheet: sheet, StartCol: startCol, StartRow: startRow, EndCol: startCol, EndRow: startRow}
	if hasEnd {
		endCol, endRow, err := parseCell(end)
		if err != nil {
			return Ref{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		ref.EndCol = endCol
		ref.EndRow = endRow
	}

	if ref.EndCol < ref.StartCol {
		return Ref{}, fmt.Errorf("invalid range %q: end column before start column", s)
	}
	if ref.EndRow != 0 && ref.EndRow < ref.StartRow {
		return Ref{}, fmt.Errorf("invalid range %q: end row before start row", s)
	}
	return ref, nil
}

// MustParse is Parse for compile-time constants.
func MustParse(s string) Ref {
	ref, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// Width is the number of columns covered.
func (r Ref) Width() int {
	return r.EndCol - r.StartCol + 1
}

// Bounded reports whether the range has a fixed last row.
func (r Ref) Bounded() bool {
	return r.EndRow != 0
}

// Contains reports whether the 1-based cell (row, col) lies inside the range.
func (r Ref) Contains(row, col int) bool {
	if col < r.StartCol || col > r.EndCol || row < r.StartRow {
		return false
	}
	return !r.Bounded() || row <= r.EndRow
}

func (r Ref) String() string {
	sheet := r.Sheet
	if strings.ContainsAny(sheet, " '!:") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}

	start := ColumnName(r.StartCol) + strconv.Itoa(r.StartRow)
	if r.EndCol == r.StartCol && r.EndRow == r.StartRow {
		return sheet + "!" + start
	}

	end := ColumnName(r.EndCol)
	if r.Bounded() {
		end += strconv.Itoa(r.EndRow)
	}
	return sheet + "!" + start + ":" + end
}

// ColumnName converts a 1-based column number to letters: 1 -> A, 27 -> AA.
func ColumnName(col int) string {
	var name []byte
	for col > 0 {
		col--
		name = append([]byte{byte('A' + col%26)}, name...)
		col /= 26
	}
	return string(name)
}

// parseCell splits "AB12" into column 28 and row 12. A missing row yields 0.
func parseCell(cell string) (col, row int, err error) {
	i := 0
	for i < len(cell) {
		ch := cell[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			break
		}
		col = col*26 + int(ch-'A'+1)
		i++
	}
	if col == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", cell)
	}
	if i == len(cell) {
		return col, 0, nil
	}

	row, err = strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("cell %q has an invalid row", cell)
	}
	return col, row, nil
}
