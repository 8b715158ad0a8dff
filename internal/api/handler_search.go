package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/search"
)

type searchFiltersRequest struct {
	SourceType           string   `json:"source_type,omitempty"`
	ExcludeConversations bool     `json:"exclude_conversations,omitempty"`
	FileTypes            []string `json:"file_types,omitempty"`
	Paths                []string `json:"paths,omitempty"`
}

type searchRequest struct {
	Query   string                `json:"query"`
	Limit   int                   `json:"limit,omitempty"`
	Offset  int                   `json:"offset,omitempty"`
	Filters *searchFiltersRequest `json:"filters,omitempty"`
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "project_id")

	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}

	var filters search.Filters
	if body.Filters != nil {
		filters = search.Filters{
			SourceType:           body.Filters.SourceType,
			ExcludeConversations: body.Filters.ExcludeConversations,
			FileTypes:            body.Filters.FileTypes,
			Paths:                body.Filters.Paths,
		}
	}

	resp, err := r.searcher.Search(req.Context(), projectID, body.Query, body.Limit, body.Offset, filters)
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewInternalError("search failed", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
