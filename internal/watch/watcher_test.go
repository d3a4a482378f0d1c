package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func mappedFile(t *testing.T, svc *memo.Service, dir, name, ft string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := svc.Assign(p, ft); err != nil {
		t.Fatal(err)
	}
	paths := svc.Paths()
	if len(paths) == 0 {
		t.Fatal("mapping not recorded")
	}
	// Assign canonicalizes; find the key for this file.
	for _, cp := range paths {
		if filepath.Base(cp) == name {
			return cp
		}
	}
	t.Fatalf("no mapping key for %s", name)
	return ""
}

func TestWatcher_RemovedFileSwept(t *testing.T) {
	refresh := make(chan struct{}, 1)
	svc := testutil.TestService(t)
	dir := t.TempDir()
	keep := mappedFile(t, svc, dir, "keep.py", "python")
	gone := mappedFile(t, svc, dir, "gone.py", "rust")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, svc, testLogger(), 50*time.Millisecond, refresh)
	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := svc.Lookup(gone)
		return !ok
	}, "removed file still mapped after sweep")

	if _, ok := svc.Lookup(keep); !ok {
		t.Error("existing mapping swept away")
	}
}

func TestWatcher_RefreshPicksUpNewDirs(t *testing.T) {
	refresh := make(chan struct{}, 1)
	svc := testutil.TestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, svc, testLogger(), 50*time.Millisecond, refresh)
	time.Sleep(100 * time.Millisecond)

	// Map a file in a directory the watcher has never seen.
	dir := t.TempDir()
	gone := mappedFile(t, svc, dir, "late.py", "python")
	refresh <- struct{}{}
	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := svc.Lookup(gone)
		return !ok
	}, "file in late-added dir not swept")
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	refresh := make(chan struct{}, 1)
	svc := testutil.TestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, svc, testLogger(), 50*time.Millisecond, refresh) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}
