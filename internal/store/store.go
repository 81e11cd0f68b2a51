// Package store persists extraction history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// Store errors.
var (
	ErrNotOpen  = errors.New("database not opened")
	ErrNotFound = errors.New("extraction not found")
)

// Extraction is one saved lineage extraction.
type Extraction struct {
	ID           string           `json:"id" yaml:"id"`
	SQL          string           `json:"sql" yaml:"sql"`
	Mode         string           `json:"mode" yaml:"mode"`
	SourceTables []string         `json:"source_tables" yaml:"source_tables"`
	ColumnCount  int              `json:"column_count" yaml:"column_count"`
	Records      []lineage.Record `json:"records,omitempty" yaml:"records,omitempty"`
	CreatedAt    time.Time        `json:"created_at" yaml:"created_at"`
}

// SQLiteStore stores extractions in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the history database at path and runs
// migrations. Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := NewWithDB(db)
	s.path = path
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already open database. The caller is responsible for
// running Migrate.
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// buildDSN adds the connection pragmas to path.
func buildDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if path == ":memory:" {
		return "file::memory:?" + params.Encode()
	}
	params.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + params.Encode()
}

// Path returns the database path passed to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// Save stores the SQL text and its records and returns the new extraction.
func (s *SQLiteStore) Save(ctx context.Context, sqlText string, res *lineage.Result) (*Extraction, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if res == nil {
		return nil, errors.New("nothing to save")
	}

	e := &Extraction{
		ID:           generateID(),
		SQL:          sqlText,
		Mode:         res.Mode.String(),
		SourceTables: nonNil(res.Tables),
		ColumnCount:  len(res.Records),
		Records:      res.Records,
		CreatedAt:    s.now(),
	}
	tables, err := json.Marshal(e.SourceTables)
	if err != nil {
		return nil, fmt.Errorf("failed to encode source tables: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO extractions (id, sql_text, mode, source_tables, column_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SQL, e.Mode, string(tables), e.ColumnCount, e.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to save extraction: %w", err)
	}

	for i, r := range e.Records {
		recTables, err := json.Marshal(nonNil(r.SourceTables))
		if err != nil {
			return nil, fmt.Errorf("failed to encode source tables: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extraction_columns (extraction_id, position, original_column, alias, source_tables, processing_logic) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, r.OriginalColumn, r.Alias, string(recTables), r.ProcessingLogic,
		); err != nil {
			return nil, fmt.Errorf("failed to save column %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit extraction: %w", err)
	}
	return e, nil
}

// List returns the most recent extractions first, without records. A
// non-positive limit returns all of them.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Extraction, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sql_text, mode, source_tables, column_count, created_at
		 FROM extractions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Extraction
	for rows.Next() {
		var (
			e      Extraction
			tables string
		)
		if err := rows.Scan(&e.ID, &e.SQL, &e.Mode, &tables, &e.ColumnCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		if err := json.Unmarshal([]byte(tables), &e.SourceTables); err != nil {
			return nil, fmt.Errorf("failed to decode source tables of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	return out, nil
}

// Get returns the extraction with the given ID, including its records.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Extraction, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var (
		e      Extraction
		tables string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sql_text, mode, source_tables, column_count, created_at FROM extractions WHERE id = ?`, id,
	).Scan(&e.ID, &e.SQL, &e.Mode, &tables, &e.ColumnCount, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	if err := json.Unmarshal([]byte(tables), &e.SourceTables); err != nil {
		return nil, fmt.Errorf("failed to decode source tables of %s: %w", e.ID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT original_column, alias, source_tables, processing_logic
		 FROM extraction_columns WHERE extraction_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	e.Records = make([]lineage.Record, 0, e.ColumnCount)
	for rows.Next() {
		var r lineage.Record
		if err := rows.Scan(&r.OriginalColumn, &r.Alias, &tables, &r.ProcessingLogic); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if err := json.Unmarshal([]byte(tables), &r.SourceTables); err != nil {
			return nil, fmt.Errorf("failed to decode source tables of %s: %w", e.ID, err)
		}
		e.Records = append(e.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return &e, nil
}

// Delete removes the extraction with the given ID and its columns.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete extraction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete extraction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
