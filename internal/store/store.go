// Package store persists the path-to-filetype mapping as a single JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// BackupSuffix is appended to the store path when a corrupt file is quarantined.
const BackupSuffix = ".backup"

// Mapping is the persisted table: absolute file path -> filetype name.
type Mapping map[string]string

// Store reads and writes a Mapping at a fixed file path.
type Store struct {
	path string
}

// New creates a Store for the given file path and ensures its parent
// directory exists.
func New(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &Store{path: abs}, nil
}

// Path returns the absolute path of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the mapping from disk. A missing or empty file yields an empty
// mapping. A file that fails to decode as a string-to-string JSON object is
// quarantined to a sibling .backup file (overwritten if present) and an empty
// mapping is returned; decode failures are never propagated. Entries with an
// empty filetype value are dropped on load.
func (s *Store) Load() (Mapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Mapping{}, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return Mapping{}, nil
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		if qErr := s.quarantine(data); qErr != nil {
			return nil, fmt.Errorf("store: quarantine corrupt file: %w", qErr)
		}
		return Mapping{}, nil
	}
	if m == nil {
		m = Mapping{}
	}
	for path, ft := range m {
		if ft == "" {
			delete(m, path)
		}
	}
	return m, nil
}

// Save serializes the mapping and atomically replaces the backing file:
// tmp file -> fsync -> rename. The whole file is rewritten on every call.
func (s *Store) Save(m Mapping) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ftmemo-tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	success = true
	return nil
}

// quarantine copies raw corrupt content to the sibling backup file so the
// store can restart empty without losing the prior bytes.
func (s *Store) quarantine(raw []byte) error {
	return os.WriteFile(s.path+BackupSuffix, raw, 0o644)
}
