package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/internal/orchestrator"
	"turn-orchestrator/internal/view"
	"turn-orchestrator/pkg/provider"
)

// targetModelRequest is the wire shape of one target_models[] entry (spec
// §4.8's request JSON).
type targetModelRequest struct {
	Provider string           `json:"provider"`
	ModelID  string           `json:"model_id"`
	Name     string           `json:"name,omitempty"`
	AgentID  string           `json:"agent_id,omitempty"`
	Options  provider.Options `json:"options,omitempty"`
}

type systemPromptsRequest struct {
	CommonTemplate  string            `json:"common_template,omitempty"`
	PerAgent        map[string]string `json:"per_agent,omitempty"`
	PerModel        map[string]string `json:"per_model,omitempty"`
	ProviderDefault map[string]string `json:"provider_default,omitempty"`
}

type attachmentRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

type turnRequest struct {
	ConversationID  string                `json:"conversation_id,omitempty"`
	UserMessage     string                `json:"user_message"`
	TargetModels    []targetModelRequest  `json:"target_models"`
	SystemPrompts   *systemPromptsRequest `json:"system_prompts,omitempty"`
	TextAttachments []attachmentRequest   `json:"text_attachments,omitempty"`
}

func (r *Router) handleTurn(w http.ResponseWriter, req *http.Request) {
	var body turnRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("malformed request body", err.Error()))
		return
	}
	if strings.TrimSpace(body.UserMessage) == "" {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("user_message is required", nil))
		return
	}
	if len(body.TargetModels) == 0 {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError("target_models must contain at least one entry", nil))
		return
	}

	orchReq := orchestrator.Request{
		ConversationID:  body.ConversationID,
		UserMessage:     body.UserMessage,
		TargetModels:    toOrchestratorTargets(body.TargetModels),
		SystemPrompts:   toViewSystemPrompts(body.SystemPrompts),
		TextAttachments: toViewAttachments(body.TextAttachments),
	}

	if strings.Contains(req.Header.Get("Accept"), "text/event-stream") {
		r.handleTurnSSE(w, req, orchReq)
		return
	}

	resp, err := r.orchestrator.RunTurn(req.Context(), orchReq, nil)
	if err != nil {
		apperrors.WriteHTTPError(w, apperrors.NewValidationError(err.Error(), nil))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleTurnSSE(w http.ResponseWriter, req *http.Request, orchReq orchestrator.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.WriteHTTPError(w, apperrors.NewInternalError("streaming unsupported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	emit := func(e orchestrator.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintf(bw, "data: %s\n\n", data)
		bw.Flush()
		flusher.Flush()
	}

	if _, err := r.orchestrator.RunTurn(req.Context(), orchReq, emit); err != nil {
		emit(orchestrator.Event{Type: "error"})
	}
}

func toOrchestratorTargets(in []targetModelRequest) []orchestrator.TargetModel {
	out := make([]orchestrator.TargetModel, len(in))
	for i, t := range in {
		out[i] = orchestrator.TargetModel{
			Provider: t.Provider,
			ModelID:  t.ModelID,
			Name:     t.Name,
			AgentID:  t.AgentID,
			Options:  t.Options,
		}
	}
	return out
}

func toViewSystemPrompts(in *systemPromptsRequest) view.SystemPrompts {
	if in == nil {
		return view.SystemPrompts{}
	}
	return view.SystemPrompts{
		CommonTemplate:  in.CommonTemplate,
		PerAgent:        in.PerAgent,
		PerModel:        in.PerModel,
		ProviderDefault: in.ProviderDefault,
	}
}

func toViewAttachments(in []attachmentRequest) []view.Attachment {
	out := make([]view.Attachment, len(in))
	for i, a := range in {
		out[i] = view.Attachment{Title: a.Title, Content: a.Content}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
