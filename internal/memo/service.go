// Package memo implements the filetype memory core: a heuristic detector that
// classifies observed filetype changes as manual or automatic, a restoration
// engine that reapplies remembered filetypes on open, and maintenance
// operations over the persisted mapping.
package memo

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/ftmemo/internal/apperr"
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/resolve"
	"github.com/starford/ftmemo/internal/store"
)

// Event kinds passed to the EventFunc callback.
const (
	EventSaved    = "saved"    // a manual change was persisted
	EventRestored = "restored" // a stored filetype was reapplied
	EventCleared  = "cleared"  // an entry was explicitly cleared
	EventRemoved  = "removed"  // cleanup swept a stale entry
)

// EventFunc is called after each mapping mutation or restoration.
type EventFunc func(kind, path string)

// Item is one mapping entry in a list snapshot.
type Item struct {
	Path     string `json:"path"`
	Filetype string `json:"filetype"`
}

// Service owns all detector and mapping state: the persisted mapping, the
// transient baseline table, and the suppression flag. All operations
// serialize behind one mutex, so detector decisions never interleave.
type Service struct {
	mu         sync.Mutex
	enabled    bool
	store      *store.Store
	mapping    store.Mapping
	baseline   map[string]string
	suppressed bool
	rec        history.Recorder
	logger     *slog.Logger
	onEvent    EventFunc
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithRecorder attaches a change-log recorder.
func WithRecorder(r history.Recorder) ServiceOption {
	return func(s *Service) { s.rec = r }
}

// WithEventFunc sets the mutation event callback.
func WithEventFunc(fn EventFunc) ServiceOption {
	return func(s *Service) { s.onEvent = fn }
}

// WithEnabled gates all event handling. Disabled services still answer
// list/clear/cleanup requests.
func WithEnabled(enabled bool) ServiceOption {
	return func(s *Service) { s.enabled = enabled }
}

// New creates a Service and loads the persisted mapping. A corrupt store file
// has already been quarantined by Load, so New starts empty in that case.
func New(st *store.Store, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		enabled:  true,
		store:    st,
		baseline: make(map[string]string),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("memo: load mapping: %w", err)
	}
	s.mapping = m
	return s, nil
}

// Enabled reports whether event handling is active.
func (s *Service) Enabled() bool {
	return s.enabled
}

// HandleOpen implements the restoration engine for a freshly opened buffer.
// When a mapping exists for the buffer's path the stored filetype is applied
// with the detector suppressed; otherwise the buffer's current filetype seeds
// the baseline so the next organic change classifies correctly. The caller
// must invoke this only after the host's own filetype detection has settled.
func (s *Service) HandleOpen(buf Buffer) (restored bool, filetype string, err error) {
	if !s.enabled {
		return false, "", nil
	}
	path := resolve.Path(buf.Name())
	if path == "" {
		return false, "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.mapping[path]
	if !ok {
		// Seed the baseline with the auto-detected value. An empty
		// filetype is not classifiable and is never recorded.
		if cur := buf.Filetype(); cur != "" {
			s.baseline[path] = cur
		}
		return false, "", nil
	}

	current := buf.Filetype()

	// Suppress the detector for the duration of the assignment; the defer
	// guarantees the flag clears on every exit path.
	s.suppressed = true
	defer func() { s.suppressed = false }()

	if err := buf.SetFiletype(stored); err != nil {
		return false, "", fmt.Errorf("memo: restore %s: %w", path, err)
	}
	s.baseline[path] = stored

	s.record(history.Entry{Path: path, OldFiletype: current, NewFiletype: stored, Source: history.SourceRestored})
	s.emit(EventRestored, path)
	s.logger.Debug("restored filetype", slog.String("path", path), slog.String("filetype", stored))
	return true, stored, nil
}

// Observe feeds one filetype-change event to the detector and reports whether
// it classified as manual. The baseline is updated to the observed value
// regardless of classification, so each decision compares only against the
// immediately preceding observation. On a manual classification the mapping
// is persisted; a write failure is returned with the in-memory mapping kept
// for retry on the next mutation.
func (s *Service) Observe(name, ft string) (manual bool, err error) {
	if !s.enabled || ft == "" {
		return false, nil
	}
	path := resolve.Path(name)
	if path == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.baseline[path]
	s.baseline[path] = ft

	switch {
	case s.suppressed:
		// A restoration is writing; never classify its echo as manual.
		return false, nil
	case !seen:
		// First sighting: automatic detection, not a user action.
		return false, nil
	case prev == ft:
		return false, nil
	}

	s.mapping[path] = ft
	if err := s.store.Save(s.mapping); err != nil {
		return true, fmt.Errorf("memo: save mapping: %w", err)
	}

	s.record(history.Entry{Path: path, OldFiletype: prev, NewFiletype: ft, Source: history.SourceManual})
	s.emit(EventSaved, path)
	s.logger.Debug("manual filetype saved",
		slog.String("path", path),
		slog.String("from", prev),
		slog.String("to", ft))
	return true, nil
}

// Assign stores a mapping directly, bypassing the detector. The path must
// resolve to an existing file or directory and the filetype must be non-empty.
func (s *Service) Assign(name, ft string) error {
	if ft == "" {
		return fmt.Errorf("memo: filetype must not be empty")
	}
	path := resolve.Path(name)
	if path == "" {
		return fmt.Errorf("memo: %s: %w", name, apperr.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.mapping[path]
	s.mapping[path] = ft
	s.baseline[path] = ft
	if err := s.store.Save(s.mapping); err != nil {
		return fmt.Errorf("memo: save mapping: %w", err)
	}

	s.record(history.Entry{Path: path, OldFiletype: prev, NewFiletype: ft, Source: history.SourceManual})
	s.emit(EventSaved, path)
	return nil
}

// Clear removes the mapping for the given buffer and resets the buffer's
// filetype to empty. Returns apperr.ErrNotFound when no entry exists.
func (s *Service) Clear(buf Buffer) error {
	path := resolve.Path(buf.Name())
	if path == "" {
		return fmt.Errorf("memo: %s: %w", buf.Name(), apperr.ErrNotFound)
	}
	if err := s.ClearPath(path); err != nil {
		return err
	}
	if err := buf.SetFiletype(""); err != nil {
		return fmt.Errorf("memo: reset filetype: %w", err)
	}
	return nil
}

// ClearPath removes the mapping and baseline entry for a canonical path and
// persists the reduced mapping.
func (s *Service) ClearPath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.mapping[path]
	if !ok {
		return fmt.Errorf("memo: %s: %w", path, apperr.ErrNotFound)
	}
	delete(s.mapping, path)
	delete(s.baseline, path)
	if err := s.store.Save(s.mapping); err != nil {
		return fmt.Errorf("memo: save mapping: %w", err)
	}

	s.record(history.Entry{Path: path, OldFiletype: old, Source: history.SourceCleared})
	s.emit(EventCleared, path)
	return nil
}

// Cleanup removes every mapping entry whose path no longer exists on disk,
// purging the corresponding baseline entries, and persists when anything
// changed. Returns the number of removed entries.
func (s *Service) Cleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type stale struct{ path, ft string }
	var removed []stale
	for path, ft := range s.mapping {
		if !resolve.Exists(path) {
			removed = append(removed, stale{path, ft})
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	for _, r := range removed {
		delete(s.mapping, r.path)
		delete(s.baseline, r.path)
	}
	if err := s.store.Save(s.mapping); err != nil {
		return len(removed), fmt.Errorf("memo: save mapping: %w", err)
	}

	for _, r := range removed {
		s.record(history.Entry{Path: r.path, OldFiletype: r.ft, Source: history.SourceSwept})
		s.emit(EventRemoved, r.path)
	}
	s.logger.Info("cleanup removed stale entries", slog.Int("count", len(removed)))
	return len(removed), nil
}

// Lookup returns the stored filetype for a canonical path.
func (s *Service) Lookup(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft, ok := s.mapping[path]
	return ft, ok
}

// List returns a snapshot of all mapping entries sorted by path.
func (s *Service) List() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.mapping))
	for path, ft := range s.mapping {
		out = append(out, Item{Path: path, Filetype: ft})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths returns the set of currently mapped paths.
func (s *Service) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.mapping))
	for path := range s.mapping {
		out = append(out, path)
	}
	return out
}

func (s *Service) record(e history.Entry) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(e); err != nil {
		s.logger.Warn("history record failed",
			slog.String("path", e.Path),
			slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, path string) {
	if s.onEvent != nil {
		s.onEvent(kind, path)
	}
}
