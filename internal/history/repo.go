package history

import (
	"fmt"
	"time"
)

const defaultLimit = 50

// Entry represents one recorded mapping change.
type Entry struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	OldFiletype string    `json:"old_filetype"`
	NewFiletype string    `json:"new_filetype"`
	Source      string    `json:"source"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Record inserts a change entry. RecordedAt is assigned by the database when
// the zero value is given.
func (db *DB) Record(e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO changes (path, old_filetype, new_filetype, source, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Path, e.OldFiletype, e.NewFiletype, e.Source, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns the newest entries across all paths, newest first.
func (db *DB) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return db.query(`
		SELECT id, path, old_filetype, new_filetype, source, recorded_at
		FROM changes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

// ForPath returns the newest entries for a single path, newest first.
func (db *DB) ForPath(path string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return db.query(`
		SELECT id, path, old_filetype, new_filetype, source, recorded_at
		FROM changes
		WHERE path = ?
		ORDER BY id DESC
		LIMIT ?
	`, path, limit)
}

func (db *DB) query(q string, args ...any) ([]Entry, error) {
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path, &e.OldFiletype, &e.NewFiletype, &e.Source, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
