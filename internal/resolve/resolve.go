// Package resolve normalizes buffer names to canonical filesystem paths.
package resolve

import (
	"os"
	"path/filepath"
)

// Path canonicalizes a buffer name to an absolute, symlink-resolved path.
// It returns "" when the name is empty (unnamed/scratch buffer) or when the
// target is neither an existing regular file nor a directory, so the same
// physical file always maps to the same mapping key regardless of how it was
// opened.
func Path(name string) string {
	if name == "" {
		return ""
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return ""
	}
	if !Exists(resolved) {
		return ""
	}
	return resolved
}

// Exists reports whether path is an existing regular file or directory.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() || info.IsDir()
}
