// Package orchestrator drives one turn of a multi-agent conversation:
// resolving/creating the conversation, normalising targets, fanning out
// to every target's ProviderAdapter concurrently over a fixed
// pre-round conversation snapshot, persisting results, and emitting
// init/result/done events for the HTTP layer to stream.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"turn-orchestrator/internal/config"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/store"
	"turn-orchestrator/internal/view"
	"turn-orchestrator/pkg/provider"
	"turn-orchestrator/pkg/types"
)

// AdapterRegistry resolves a provider family name to its Adapter.
type AdapterRegistry interface {
	Adapter(name string) (provider.Adapter, bool)
}

// TranscriptWriter persists a conversation transcript as a best-effort
// side effect; failures are logged by the caller, never surfaced.
type TranscriptWriter interface {
	Write(ctx context.Context, convID string, format string) error
}

// Request is one turn's canonical input (spec §4.8).
type Request struct {
	ConversationID  string
	UserMessage     string
	TargetModels    []TargetModel
	SystemPrompts   view.SystemPrompts
	TextAttachments []view.Attachment
}

// Result is one agent's outcome for this turn.
type Result struct {
	AgentID       string        `json:"agent_id"`
	Provider      string        `json:"provider"`
	ModelID       string        `json:"model_id"`
	Name          string        `json:"name,omitempty"`
	Text          string        `json:"text,omitempty"`
	Usage         *UsageSummary `json:"usage,omitempty"`
	Error         string        `json:"error,omitempty"`
	ProviderState string        `json:"-"`
}

// Response is the non-streaming aggregate shape for one turn.
type Response struct {
	ConversationID string   `json:"conversation_id"`
	Results        []Result `json:"results"`
}

// EventType discriminates Event.
type EventType string

// Event types per spec §4.8 step 6.
const (
	EventInit   EventType = "init"
	EventResult EventType = "result"
	EventDone   EventType = "done"
)

// Event is one SSE-able frame of a turn's progress.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Result         *Result   `json:"result,omitempty"`
	Completed      int       `json:"completed,omitempty"`
	Total          int       `json:"total,omitempty"`
}

// Orchestrator runs turns against a Store, a provider Registry, and a
// process-wide providerState carry-over map.
type Orchestrator struct {
	store      *store.Store
	registry   AdapterRegistry
	cfg        *config.Config
	transcript TranscriptWriter
	log        logging.Logger

	stateMu sync.Mutex
	state   map[string]json.RawMessage // stateKey ("conversationID:agentID") -> providerState
}

// New builds an Orchestrator. transcript and log may be nil.
func New(s *store.Store, registry AdapterRegistry, cfg *config.Config, transcript TranscriptWriter, log logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:      s,
		registry:   registry,
		cfg:        cfg,
		transcript: transcript,
		log:        log,
		state:      make(map[string]json.RawMessage),
	}
}

// RunTurn executes one turn per spec §4.8 steps 1-7. emit, if non-nil, is
// called for every event in order (init, then one result per target as
// it completes, then done); it is safe to pass nil for a non-streaming
// caller that only needs the returned aggregate Response.
func (o *Orchestrator) RunTurn(ctx context.Context, req Request, emit func(Event)) (*Response, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	conv, history, err := o.resolveConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	emit(Event{Type: EventInit, ConversationID: conv.ID})

	targets, err := normalizeTargets(req.TargetModels, o.cfg)
	if err != nil {
		return nil, err
	}

	userMsg, err := o.store.AppendUserMessage(ctx, conv.ID, req.UserMessage, "{}")
	if err != nil {
		return nil, err
	}
	roundNumber := userMsg.RoundNumber

	note := computeCapabilityNote(targets)
	prompts := req.SystemPrompts
	if note != "" {
		prompts.CommonTemplate = joinNonEmpty(prompts.CommonTemplate, note)
	}

	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	var completedMu sync.Mutex
	completed := 0

	for i, t := range targets {
		wg.Add(1)
		go func(i int, t TargetModel) {
			defer wg.Done()
			r := o.runOneTarget(ctx, conv.ID, roundNumber, history, req, t, prompts)
			results[i] = r

			completedMu.Lock()
			completed++
			n := completed
			emit(Event{Type: EventResult, Result: &r, Completed: n, Total: len(targets)})
			completedMu.Unlock()
		}(i, t)
	}
	wg.Wait()

	if o.transcript != nil && conv.AutosaveEnabled {
		if err := o.transcript.Write(ctx, conv.ID, conv.AutosaveFormat); err != nil && o.log != nil {
			o.log.ErrorContext(ctx, "autosave transcript failed", "conversation_id", conv.ID, "error", err.Error())
		}
	}

	emit(Event{Type: EventDone, ConversationID: conv.ID, Completed: len(targets), Total: len(targets)})

	return &Response{ConversationID: conv.ID, Results: results}, nil
}

// resolveConversation implements spec §4.8 step 1, returning the
// conversation and its pre-round history snapshot (prior rounds only —
// the current round's user/agent messages are never part of it).
func (o *Orchestrator) resolveConversation(ctx context.Context, conversationID string) (*types.Conversation, types.ConversationWithRounds, error) {
	if conversationID != "" {
		if snap, err := o.store.GetConversationWithRounds(ctx, conversationID); err == nil {
			return &snap.Conversation, *snap, nil
		}
	}

	projectID, err := o.store.DefaultProjectID(ctx)
	if err != nil {
		return nil, types.ConversationWithRounds{}, err
	}
	conv, err := o.store.CreateConversation(ctx, projectID, "")
	if err != nil {
		return nil, types.ConversationWithRounds{}, err
	}
	return conv, types.ConversationWithRounds{Conversation: *conv}, nil
}

// runOneTarget builds one target's view, invokes its adapter, and
// persists the outcome. Adapter failures are captured as a Result.Error,
// never returned as a Go error — sibling targets are unaffected.
func (o *Orchestrator) runOneTarget(ctx context.Context, conversationID string, roundNumber int, history types.ConversationWithRounds, req Request, t TargetModel, prompts view.SystemPrompts) Result {
	result := Result{AgentID: t.AgentID, Provider: t.Provider, ModelID: t.ModelID, Name: t.Name}

	built := view.Build(view.Input{
		Conversation: history,
		Target: view.Target{
			Provider: t.Provider,
			ModelID:  t.ModelID,
			AgentID:  t.AgentID,
			Name:     t.Name,
		},
		UserMessage:   req.UserMessage,
		Attachments:   req.TextAttachments,
		SystemPrompts: prompts,
	})

	sendReq := toSendRequest(built, t)

	stateKey := conversationID + ":" + t.AgentID
	o.stateMu.Lock()
	sendReq.ProviderState = o.state[stateKey]
	o.stateMu.Unlock()

	adapter, ok := o.registry.Adapter(t.Provider)
	if !ok {
		result.Error = fmt.Sprintf("no adapter configured for provider %q", t.Provider)
		return result
	}

	resp, err := adapter.Send(ctx, sendReq)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Text = resp.Text
	limit, basis := resolveLimit(t, o.cfg)
	summary := summarizeUsage(resp.Usage, limit, basis)
	result.Usage = &summary

	metadata, _ := json.Marshal(types.AgentMessageMetadata{Provider: t.Provider, ModelID: t.ModelID, Name: t.Name})
	if _, err := o.store.AppendAgentMessage(ctx, conversationID, t.AgentID, roundNumber, resp.Text, string(metadata)); err != nil {
		result.Error = err.Error()
		result.Text = ""
		return result
	}

	if resp.ProviderState != nil {
		o.stateMu.Lock()
		o.state[stateKey] = resp.ProviderState
		o.stateMu.Unlock()
	}

	return result
}

// providerShape partitions provider families by wire shape (spec §4.7
// step 4).
func providerShape(name string) string {
	switch name {
	case config.ProviderAnthropic, config.ProviderGoogle:
		return "split"
	default:
		return "flat"
	}
}

func toSendRequest(v view.View, t TargetModel) provider.SendRequest {
	req := provider.SendRequest{Model: t.ModelID, Options: t.Options}

	if providerShape(t.Provider) == "split" {
		system, msgs := v.Split()
		req.System = system
		req.Messages = toProviderMessages(msgs)
		return req
	}

	req.Messages = toProviderMessages(v.Flat())
	return req
}

func toProviderMessages(msgs []view.Message) []provider.Message {
	out := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		role := provider.RoleUser
		switch m.Role {
		case view.RoleAssistant:
			role = provider.RoleAssistant
		case "system":
			role = provider.RoleSystem
		}
		out[i] = provider.Message{Role: role, Content: m.Content}
	}
	return out
}

// resolveLimit returns the maxTokens limit that applied to this call
// (after target normalisation folded in provider defaults) along with
// its provenance, for UsageSummary.LimitBasis.
func resolveLimit(t TargetModel, cfg *config.Config) (int, string) {
	if t.Options.MaxTokens > 0 {
		if pcfg, ok := cfg.Providers[t.Provider]; ok && pcfg.MaxTokens == t.Options.MaxTokens {
			return t.Options.MaxTokens, LimitBasisProviderDefault
		}
		return t.Options.MaxTokens, LimitBasisTargetOption
	}
	return 0, ""
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += p
	}
	return out
}
