package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathEmptyName(t *testing.T) {
	if got := Path(""); got != "" {
		t.Errorf("Path(\"\") = %q, want empty", got)
	}
}

func TestPathNonexistent(t *testing.T) {
	if got := Path(filepath.Join(t.TempDir(), "missing.txt")); got != "" {
		t.Errorf("Path(missing) = %q, want empty", got)
	}
}

func TestPathRegularFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := Path(file)
	if got == "" || !filepath.IsAbs(got) {
		t.Errorf("Path(file) = %q, want absolute path", got)
	}
}

func TestPathDirectory(t *testing.T) {
	dir := t.TempDir()
	if got := Path(dir); got == "" {
		t.Error("Path(dir) should resolve for directories")
	}
}

func TestPathRelativeAndSymlinkSameKey(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "alias.txt")
	if err := os.Symlink(file, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	direct := Path(file)
	viaLink := Path(link)
	if direct == "" || direct != viaLink {
		t.Errorf("direct = %q, via symlink = %q, want identical keys", direct, viaLink)
	}

	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	viaRel := Path("real.txt")
	if viaRel != direct {
		t.Errorf("relative = %q, absolute = %q, want identical keys", viaRel, direct)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	_ = os.WriteFile(file, []byte("x"), 0o644)

	if !Exists(file) {
		t.Error("Exists(file) = false")
	}
	if !Exists(dir) {
		t.Error("Exists(dir) = false")
	}
	if Exists(filepath.Join(dir, "gone")) {
		t.Error("Exists(missing) = true")
	}
}
