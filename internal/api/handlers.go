package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/ftmemo/internal/apperr"
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/resolve"
)

// Handler holds API route handlers.
type Handler struct {
	svc *memo.Service
	rec history.Recorder
}

// NewHandler creates a new Handler. rec may be nil when history is disabled.
func NewHandler(svc *memo.Service, rec history.Recorder) *Handler {
	return &Handler{svc: svc, rec: rec}
}

// eventBuffer binds a memo.Buffer to one request/response pair: the request
// carries the buffer's reported state, SetFiletype captures the value the
// editor is told to apply.
type eventBuffer struct {
	name     string
	filetype string

	assigned string
	set      bool
}

func (b *eventBuffer) Name() string     { return b.name }
func (b *eventBuffer) Filetype() string { return b.filetype }

func (b *eventBuffer) SetFiletype(ft string) error {
	b.assigned = ft
	b.set = true
	return nil
}

// OpenEvent handles POST /api/events/open: the restoration decision for a
// freshly opened buffer.
func (h *Handler) OpenEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req OpenEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	buf := &eventBuffer{name: req.Path, filetype: req.Filetype}
	restored, ft, err := h.svc.HandleOpen(buf)
	if err != nil {
		slog.Error("open event failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, OpenEventResponse{Restored: restored, Filetype: ft})
}

// FiletypeEvent handles POST /api/events/filetype: one detector observation.
// A store write failure is the user notification channel here: the editor
// surfaces the 500 while the in-memory mapping keeps the classified value for
// retry on the next mutation.
func (h *Handler) FiletypeEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req FiletypeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	manual, err := h.svc.Observe(req.Path, req.Filetype)
	if err != nil {
		slog.Error("filetype event failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to save mapping"))
		return
	}
	writeJSON(w, http.StatusOK, FiletypeEventResponse{Manual: manual})
}

// ListMappings handles GET /api/mappings.
func (h *Handler) ListMappings(w http.ResponseWriter, _ *http.Request) {
	items := h.svc.List()
	writeJSON(w, http.StatusOK, MappingListResponse{Mappings: items, Total: len(items)})
}

// ClearMapping handles DELETE /api/mappings?path=. The response tells the
// editor to reset the buffer's filetype to empty.
func (h *Handler) ClearMapping(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}

	// Canonicalize when the file still exists; a clear for an already
	// deleted file falls back to the path as given, which is the stored key.
	key := resolve.Path(path)
	if key == "" {
		key = path
	}

	if err := h.svc.ClearPath(key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("clear failed", slog.String("path", key), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Reset: true})
}

// Cleanup handles POST /api/cleanup.
func (h *Handler) Cleanup(w http.ResponseWriter, _ *http.Request) {
	removed, err := h.svc.Cleanup()
	if err != nil {
		slog.Error("cleanup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// History handles GET /api/history?path=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody("history is disabled"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var (
		entries []history.Entry
		err     error
	)
	if path := q.Get("path"); path != "" {
		entries, err = h.rec.ForPath(path, limit)
	} else {
		entries, err = h.rec.Recent(limit)
	}
	if err != nil {
		slog.Error("history query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Changes: entries})
}
