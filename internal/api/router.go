package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// rec may be nil when the change log is disabled.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memo.Service, rec history.Recorder, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, rec)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Editor event protocol.
	r.Post("/events/open", h.OpenEvent)
	r.Post("/events/filetype", h.FiletypeEvent)

	// Mapping maintenance.
	r.Get("/mappings", h.ListMappings)
	r.Delete("/mappings", h.ClearMapping)
	r.Post("/cleanup", h.Cleanup)

	// Change log.
	r.Get("/history", h.History)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
