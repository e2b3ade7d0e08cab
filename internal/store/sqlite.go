package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/whetherapp/whether-backend/internal/errs"
	"github.com/whetherapp/whether-backend/internal/rangeref"
)

const cellsSchema = `
CREATE TABLE IF NOT EXISTS cells (
	sheet TEXT NOT NULL,
	row   INTEGER NOT NULL,
	col   INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (sheet, row, col)
)`

// SQLite stores cells in a local database file. Every call runs in its own
// transaction, so a single write or append is atomic, but a read followed by a
// write is not.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("Opened SQLite store")
	return s, nil
}

// NewSQLite wraps an existing connection and ensures the schema exists.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(cellsSchema); err != nil {
		return nil, fmt.Errorf("failed to create cells table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ReadRange(ctx context.Context, rangeRef string) ([][]string, error) {
	ref, err := parseRange(rangeRef)
	if err != nil {
		return nil, err
	}

	query := `SELECT row, col, value FROM cells
		WHERE sheet = ? AND col BETWEEN ? AND ? AND row >= ?`
	args := []any{ref.Sheet, ref.StartCol, ref.EndCol, ref.StartRow}
	if ref.Bounded() {
		query += ` AND row <= ?`
		args = append(args, ref.EndRow)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Upstream("failed to read range", err)
	}
	defer rows.Close()

	g := make(grid)
	lastRow := 0
	for rows.Next() {
		var c cell
		var value string
		if err := rows.Scan(&c.row, &c.col, &value); err != nil {
			return nil, errs.Upstream("failed to read range", err)
		}
		g[c] = value
		lastRow = max(lastRow, c.row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Upstream("failed to read range", err)
	}

	return g.rows(ref, lastRow), nil
}

func (s *SQLite) WriteRange(ctx context.Context, rangeRef string, rows [][]string) error {
	ref, err := parseRange(rangeRef)
	if err != nil {
		return err
	}
	cells, err := placeWrite(ref, rows)
	if err != nil {
		return errs.Upstream("failed to write range", err)
	}

	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return putCells(ctx, tx, ref.Sheet, cells)
	}); err != nil {
		return errs.Upstream("failed to write range", err)
	}
	return nil
}

func (s *SQLite) AppendRow(ctx context.Context, rangeRef string, row []string) error {
	ref, err := parseRange(rangeRef)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var lastRow int
		err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(row), 0) FROM cells
			WHERE sheet = ? AND col BETWEEN ? AND ? AND row >= ?`,
			ref.Sheet, ref.StartCol, ref.EndCol, ref.StartRow).Scan(&lastRow)
		if err != nil {
			return err
		}

		target := appendTarget(ref, lastRow)
		cells := make(map[cell]string, len(row))
		for j, value := range row {
			cells[cell{target, ref.StartCol + j}] = value
		}
		return putCells(ctx, tx, ref.Sheet, cells)
	})
	if err != nil {
		return errs.Upstream("failed to append row", err)
	}
	return nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func putCells(ctx context.Context, tx *sql.Tx, sheet string, cells map[cell]string) error {
	for c, value := range cells {
		var err error
		if value == "" {
			_, err = tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ? AND row = ? AND col = ?`, sheet, c.row, c.col)
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO cells (sheet, row, col, value) VALUES (?, ?, ?, ?)
				ON CONFLICT (sheet, row, col) DO UPDATE SET value = excluded.value`, sheet, c.row, c.col, value)
		}
		if err != nil {
			return fmt.Errorf("failed to store %s%d: %w", rangeref.ColumnName(c.col), c.row, err)
		}
	}
	return nil
}
