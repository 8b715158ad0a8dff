package api

import (
	"encoding/json"
	"net/http"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/pkg/types"

	"turn-orchestrator/internal/view"
)

// previewViewRequest mirrors turnRequest's shape but names a single target
// directly, per spec §6's "returns the exact view a specified
// (provider, model_id, agent_id?) would receive for a given draft turn".
type previewViewRequest struct {
	ConversationID  string                `json:"conversation_id,omitempty"`
	Provider        string                `json:"provider"`
	ModelID         string                `json:"model_id"`
	AgentID         string                `json:"agent_id,omitempty"`
	Name            string                `json:"name,omitempty"`
	UserMessage     string                `json:"user_message"`
	SystemPrompts   *systemPromptsRequest `json:"system_prompts,omitempty"`
	TextAttachments []attachmentRequest   `json:"text_attachments,omitempty"`
}

type previewViewResponse struct {
	System   string         `json:"system"`
	Messages []view.Message `json:"messages"`
}

func (r *Router) handlePreviewView(w http.ResponseWriter, req *http.Request) {
	var body previewViewRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}
	if body.Provider == "" || body.ModelID == "" {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("provider and model_id are required", nil))
		return
	}

	conv := types.ConversationWithRounds{}
	if body.ConversationID != "" {
		loaded, err := r.store.GetConversationWithRounds(req.Context(), body.ConversationID)
		if err != nil {
			apperrors.WriteHTTPError(w, err)
			return
		}
		conv = *loaded
	}

	built := view.Build(view.Input{
		Conversation: conv,
		Target: view.Target{
			Provider: body.Provider,
			ModelID:  body.ModelID,
			AgentID:  body.AgentID,
			Name:     body.Name,
		},
		UserMessage:   body.UserMessage,
		Attachments:   toViewAttachments(body.TextAttachments),
		SystemPrompts: toViewSystemPrompts(body.SystemPrompts),
	})

	writeJSON(w, http.StatusOK, previewViewResponse{System: built.System, Messages: built.Flat()})
}
