package window

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSink stores flushed windows as rows in a SQLite database. Useful
// when a run produces many windows and a single queryable artifact beats a
// directory of files.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) windows.db under dir and initializes the
// schema.
func NewSQLiteSink(dir string) (*SQLiteSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating window directory: %w", err)
	}

	dbPath := filepath.Join(dir, "windows.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS windows (
	name       TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL
);`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Store inserts one window row. Windows are write-once: replaying a name is
// rejected by the primary key, surfacing duplicate-range bugs instead of
// silently amending stored data.
func (s *SQLiteSink) Store(name string, payload []byte) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO windows (name, payload, created_at) VALUES (?, ?, ?)`,
		name, payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting window %s: %w", name, err)
	}
	return nil
}

// Windows returns the stored window names in insertion order.
func (s *SQLiteSink) Windows(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM windows ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying windows: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning window row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Payload returns the stored payload for one window name.
func (s *SQLiteSink) Payload(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM windows WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("loading window %s: %w", name, err)
	}
	return payload, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
