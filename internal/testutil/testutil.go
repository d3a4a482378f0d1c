// Package testutil provides shared test helpers for setting up stores,
// history databases, and services.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/store"
)

// TestStore creates a mapping store backed by a file in a temp directory.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "mapping.json"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// TestHistory creates a temporary SQLite change log that is automatically
// cleaned up.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ftmemo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService creates a memo service over a temp store.
func TestService(t *testing.T, opts ...memo.ServiceOption) *memo.Service {
	t.Helper()
	svc, err := memo.New(TestStore(t), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}
