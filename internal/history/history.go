// Package history provides a SQLite-backed log of mapping mutations, kept for
// auditing the manual-change heuristic.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Sources of a recorded mapping change.
const (
	SourceManual   = "manual"   // detector classified a user override
	SourceRestored = "restored" // restoration engine applied a stored filetype
	SourceCleared  = "cleared"  // explicit clear command
	SourceSwept    = "swept"    // cleanup removed a stale entry
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS changes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	path         TEXT NOT NULL,
	old_filetype TEXT NOT NULL DEFAULT '',
	new_filetype TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL,
	recorded_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_changes_path ON changes(path);
CREATE INDEX IF NOT EXISTS idx_changes_recorded_at ON changes(recorded_at);
`

// DB wraps a sql.DB with change-log operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
