// Package watch keeps the mapping free of stale entries while the daemon
// runs, complementing the startup cleanup pass.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ftmemo/internal/memo"
)

const defaultDebounce = 200 * time.Millisecond

// Run watches the parent directories of every mapped path and processes
// filesystem events until ctx is cancelled. Remove and rename events schedule
// a debounced cleanup sweep, so entries for deleted files disappear shortly
// after the file does instead of at the next restart.
//
// refresh signals that the mapping changed and the watch set should be
// rebuilt; senders must not block on it.
func Run(ctx context.Context, svc *memo.Service, logger *slog.Logger, debounce time.Duration, refresh <-chan struct{}) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]struct{})
	syncDirs := func() {
		desired := make(map[string]struct{})
		for _, p := range svc.Paths() {
			desired[filepath.Dir(p)] = struct{}{}
		}
		for dir := range desired {
			if _, ok := watched[dir]; ok {
				continue
			}
			if addErr := w.Add(dir); addErr != nil {
				logger.Warn("watcher: add dir failed",
					slog.String("dir", dir),
					slog.String("error", addErr.Error()))
				continue
			}
			watched[dir] = struct{}{}
			logger.Debug("watcher: watching dir", slog.String("dir", dir))
		}
		for dir := range watched {
			if _, ok := desired[dir]; ok {
				continue
			}
			_ = w.Remove(dir)
			delete(watched, dir)
			logger.Debug("watcher: dropped dir", slog.String("dir", dir))
		}
	}
	syncDirs()

	logger.Info("watcher: started", slog.Int("dirs", len(watched)))

	// sweepTimer debounces the cleanup pass across event bursts.
	var sweepTimer *time.Timer
	var sweepCh <-chan time.Time

	scheduleSweep := func() {
		if sweepTimer == nil {
			sweepTimer = time.NewTimer(debounce)
			sweepCh = sweepTimer.C
		} else {
			sweepTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if sweepTimer != nil {
				sweepTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-sweepCh:
			n, sweepErr := svc.Cleanup()
			if sweepErr != nil {
				logger.Warn("watcher: sweep failed", slog.String("error", sweepErr.Error()))
			} else if n > 0 {
				logger.Debug("watcher: swept stale entries", slog.Int("count", n))
			}
			syncDirs()

		case <-refresh:
			syncDirs()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Only disappearing files can invalidate entries; the sweep
			// itself re-checks every mapped path.
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: path gone", slog.String("path", ev.Name))
				scheduleSweep()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
