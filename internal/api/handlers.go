package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/muninn/internal/content"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc *content.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *content.Service) *Handler {
	return &Handler{svc: svc}
}

// GetDocument handles GET /api/documents/{category}/{id}.
//
//	@Summary		Get a single document with its fetch outcome
//	@Tags			documents
//	@Produce		json
//	@Param			category	path		string	true	"Document category"	Enums(risk, mitigation, framework)
//	@Param			id			path		string	true	"Document identifier (canonical id, stem, filename, or sequence)"
//	@Success		200			{object}	DocumentResponse
//	@Failure		404			{object}	content.ErrorInfo
//	@Failure		429			{object}	content.ErrorInfo
//	@Security		BearerAuth
//	@Router			/documents/{category}/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	c, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, "get document failed", err)
		return
	}
	res, err := h.svc.Get(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get document failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListDocuments handles GET /api/documents/{category}.
//
//	@Summary		List a category's documents in canonical order
//	@Tags			documents
//	@Produce		json
//	@Param			category	path		string	true	"Document category"	Enums(risk, mitigation, framework)
//	@Success		200			{object}	SummaryListResponse
//	@Failure		400			{object}	content.ErrorInfo
//	@Security		BearerAuth
//	@Router			/documents/{category} [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	c, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, "list documents failed", err)
		return
	}
	summaries, err := h.svc.List(r.Context(), c)
	if err != nil {
		writeError(w, "list documents failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": summaries,
		"total":     len(summaries),
	})
}

// Search handles GET /api/search.
//
//	@Summary		Substring search over known document titles and previews
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			category	query		string	false	"Restrict to one category"	Enums(risk, mitigation, framework)
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	content.ErrorInfo
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := models.ParseCategory(raw)
		if err != nil {
			writeError(w, "search failed", err)
			return
		}
		c = parsed
	}
	matches, err := h.svc.Search(r.Context(), c, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search failed", err)
		return
	}
	if matches == nil {
		matches = []search.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": matches,
	})
}

// Stats handles GET /api/stats.
//
//	@Summary		Cache counters, seed revision, and snapshot size
//	@Tags			operations
//	@Produce		json
//	@Success		200	{object}	content.StatsBundle
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

// SyncSeed handles POST /api/seed/sync.
//
//	@Summary		Refresh the fallback seed list from live listings
//	@Tags			operations
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		502	{object}	content.ErrorInfo
//	@Security		BearerAuth
//	@Router			/seed/sync [post]
func (h *Handler) SyncSeed(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.SyncSeed(r.Context())
	if err != nil {
		writeError(w, "seed sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"synced": counts,
	})
}
