// Package reports persists generated workbooks and indexes them for listing.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one generated report in the index.
type Entry struct {
	Filename          string    `json:"filename"`
	Station           string    `json:"station"`
	DateFrom          string    `json:"date_from"`
	DateTo            string    `json:"date_to"`
	RunAt             time.Time `json:"run_at"`
	RowCount          int       `json:"row_count"`
	TotalInstructions int       `json:"total_instructions"`
}

// Store keeps report files in a directory and their metadata in a SQLite
// database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the index database and ensures the output
// directory and schema exist.
func NewStore(dir, indexPath string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS reports (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        filename TEXT UNIQUE,
        station TEXT,
        date_from TEXT,
        date_to TEXT,
        run_at INTEGER,
        row_count INTEGER,
        total_instructions INTEGER
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db, dir: dir}, nil
}

// Dir returns the directory report files are saved under.
func (s *Store) Dir() string { return s.dir }

// Save streams the workbook bytes from r into the store's directory under
// filename and returns the full path.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// Append records a generated report in the index. A re-generated filename
// replaces its previous entry.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (filename, station, date_from, date_to, run_at, row_count, total_instructions)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(filename) DO UPDATE SET
            station = excluded.station,
            date_from = excluded.date_from,
            date_to = excluded.date_to,
            run_at = excluded.run_at,
            row_count = excluded.row_count,
            total_instructions = excluded.total_instructions`,
		e.Filename, e.Station, e.DateFrom, e.DateTo, e.RunAt.Unix(), e.RowCount, e.TotalInstructions)
	return err
}

// List returns indexed reports, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, station, date_from, date_to, run_at, row_count, total_instructions
        FROM reports ORDER BY run_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Filename, &e.Station, &e.DateFrom, &e.DateTo, &ts, &e.RowCount, &e.TotalInstructions); err != nil {
			return nil, err
		}
		e.RunAt = time.Unix(ts, 0).UTC()
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
