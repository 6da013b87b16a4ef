package api

import (
	"github.com/halvard/muninn/internal/content"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/search"
)

// DocumentResponse is the full document payload with its fetch outcome
// (aliased from the domain layer).
type DocumentResponse = content.Result

// SummaryListResponse wraps category listings.
type SummaryListResponse struct {
	Documents []models.Summary `json:"documents" validate:"required"`
	Total     int              `json:"total" example:"10" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []search.Match `json:"results" validate:"required"`
}

// SyncResponse reports per-category file counts after a seed sync.
type SyncResponse struct {
	Synced map[models.Category]int `json:"synced" validate:"required"`
}
