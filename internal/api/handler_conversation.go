package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/transcript"
)

func (r *Router) handleGetConversation(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "conversation_id")
	conv, err := r.store.GetConversationWithRounds(req.Context(), id)
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (r *Router) handleExportConversation(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "conversation_id")
	format := req.URL.Query().Get("format")
	if format == "" {
		format = transcript.FormatMarkdown
	}
	if format != transcript.FormatMarkdown && format != transcript.FormatJSON {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("format must be md or json", format))
		return
	}

	conv, err := r.store.GetConversationWithRounds(req.Context(), id)
	if err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case transcript.FormatJSON:
		data, err = transcript.RenderJSON(*conv)
		contentType = "application/json"
	default:
		data = []byte(transcript.RenderMarkdown(*conv))
		contentType = "text/markdown"
	}
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewInternalError("rendering transcript", err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conversation-%s.%s"`, id, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type autosaveRequest struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format,omitempty"`
}

func (r *Router) handleSetAutosave(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "conversation_id")

	var body autosaveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}
	if body.Format != "" && body.Format != transcript.FormatMarkdown && body.Format != transcript.FormatJSON {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("format must be md or json", body.Format))
		return
	}

	if err := r.store.SetAutosave(req.Context(), id, body.Enabled, body.Format); err != nil {
		apperrors.WriteHTTPError(w, err)
		return
	}

	if body.Enabled && r.transcripts != nil {
		if err := r.transcripts.Write(req.Context(), id, body.Format); err != nil {
			r.log.ErrorContext(req.Context(), "autosave initial write failed", "conversation_id", id, "error", err.Error())
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversation_id": id, "autosave_enabled": body.Enabled})
}
