package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/muninn/internal/content"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *content.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Corpus reads.
	r.Get("/documents/{category}", h.ListDocuments)
	r.Get("/documents/{category}/{id}", h.GetDocument)

	// Search.
	r.Get("/search", h.Search)

	// Operations.
	r.Get("/stats", h.Stats)
	r.Post("/seed/sync", h.SyncSeed)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
