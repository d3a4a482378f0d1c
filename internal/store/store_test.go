package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "mapping.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "mapping.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := os.Stat(filepath.Dir(s.Path()))
	if err != nil || !info.IsDir() {
		t.Fatalf("parent dir not created: %v", err)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := tempStore(t)
	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("mapping = %v, want empty", m)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := Mapping{
		"/home/u/notes.txt": "markdown",
		"/home/u/build":     "make",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestSaveOverwritesWholeFile(t *testing.T) {
	s := tempStore(t)
	_ = s.Save(Mapping{"/a": "python", "/b": "rust"})
	_ = s.Save(Mapping{"/a": "python"})

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["/a"] != "python" {
		t.Errorf("mapping = %v, want only /a", got)
	}
}

func TestLoadCorruptQuarantinesToBackup(t *testing.T) {
	s := tempStore(t)
	raw := []byte(`["this", "is", "not", "a", "mapping"]`)
	if err := os.WriteFile(s.Path(), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load should recover from corruption: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("mapping = %v, want empty after corruption", m)
	}

	backup, err := os.ReadFile(s.Path() + BackupSuffix)
	if err != nil {
		t.Fatalf("backup not created: %v", err)
	}
	if string(backup) != string(raw) {
		t.Errorf("backup = %q, want original bytes %q", backup, raw)
	}
}

func TestLoadCorruptOverwritesExistingBackup(t *testing.T) {
	s := tempStore(t)
	_ = os.WriteFile(s.Path()+BackupSuffix, []byte("old backup"), 0o644)
	_ = os.WriteFile(s.Path(), []byte("{{{"), 0o644)

	if _, err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	backup, _ := os.ReadFile(s.Path() + BackupSuffix)
	if string(backup) != "{{{" {
		t.Errorf("backup = %q, want latest corrupt content", backup)
	}
}

func TestLoadEmptyFileIsEmptyMapping(t *testing.T) {
	s := tempStore(t)
	_ = os.WriteFile(s.Path(), nil, 0o644)

	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("mapping = %v, want empty", m)
	}
	if _, err := os.Stat(s.Path() + BackupSuffix); err == nil {
		t.Error("empty file should not be quarantined")
	}
}

func TestLoadDropsEmptyFiletypeValues(t *testing.T) {
	s := tempStore(t)
	_ = os.WriteFile(s.Path(), []byte(`{"/a": "go", "/b": ""}`), 0o644)

	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(m, Mapping{"/a": "go"}) {
		t.Errorf("mapping = %v, want empty-valued entry dropped", m)
	}
}
