// Package view builds the per-agent view of a conversation for the
// current turn: a system primer, a projected history with self-reply
// suppression, and the current user turn, shaped to the calling
// provider family's wire layout. Given identical inputs it always
// produces byte-identical output.
package view

import (
	"encoding/json"
	"strings"

	"turn-orchestrator/pkg/types"
)

// Role is a canonical message role in a built View.
type Role string

// Canonical roles used in View.Messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a built View's projected history/current turn.
type Message struct {
	Role    Role
	Content string
}

// Target identifies the agent a view is being built for.
type Target struct {
	Provider string
	ModelID  string
	AgentID  string
	Name     string
}

// Attachment is framed as its own user-role message ahead of the current
// user message.
type Attachment struct {
	Title   string
	Content string
}

// SystemPrompts resolves the per-agent system primer override. Keys
// present with an empty value suppress the provider default; keys
// absent fall through to the next resolution level (spec §4.7 step 1).
type SystemPrompts struct {
	CommonTemplate  string            // may contain "{{modelId}}"
	PerAgent        map[string]string // agent_id -> override
	PerModel        map[string]string // model_id -> override
	ProviderDefault map[string]string // provider -> default
}

// Input is everything ViewBuilder needs to build one agent's view.
type Input struct {
	Conversation  types.ConversationWithRounds
	Target        Target
	UserMessage   string
	Attachments   []Attachment
	SystemPrompts SystemPrompts
}

// View is the built, provider-agnostic result. System is empty when no
// system primer resolved to non-empty content.
type View struct {
	System   string
	Messages []Message
}

// Flat renders the OpenAI-like/XAI-like shape: a flat messages[] with a
// leading system message when System is non-empty.
func (v View) Flat() []Message {
	if v.System == "" {
		out := make([]Message, len(v.Messages))
		copy(out, v.Messages)
		return out
	}
	out := make([]Message, 0, len(v.Messages)+1)
	out = append(out, Message{Role: "system", Content: v.System})
	out = append(out, v.Messages...)
	return out
}

// Split renders the Anthropic-like/Google-like shape: system extracted,
// messages carry no system entry.
func (v View) Split() (string, []Message) {
	return v.System, v.Messages
}

// Build constructs the view for in.Target per spec §4.7.
func Build(in Input) View {
	system := buildSystemPrimer(in.Target, in.SystemPrompts)

	var messages []Message
	for _, round := range in.Conversation.Rounds {
		messages = append(messages, projectRound(round, in.Target)...)
	}

	for _, att := range in.Attachments {
		messages = append(messages, Message{Role: RoleUser, Content: formatAttachment(att)})
	}
	messages = append(messages, Message{Role: RoleUser, Content: "User: " + in.UserMessage})

	return View{System: system, Messages: messages}
}

func buildSystemPrimer(target Target, prompts SystemPrompts) string {
	common := strings.ReplaceAll(prompts.CommonTemplate, "{{modelId}}", target.ModelID)

	override, found := "", false
	if prompts.PerAgent != nil {
		if v, ok := prompts.PerAgent[target.AgentID]; ok {
			override, found = v, true
		}
	}
	if !found && prompts.PerModel != nil {
		if v, ok := prompts.PerModel[target.ModelID]; ok {
			override, found = v, true
		}
	}
	if !found {
		override = prompts.ProviderDefault[target.Provider]
	}

	parts := make([]string, 0, 2)
	if common != "" {
		parts = append(parts, common)
	}
	if override != "" {
		parts = append(parts, override)
	}
	return strings.Join(parts, "\n\n")
}

// projectRound emits the round's user turn (with non-self peer replies
// folded in) followed by the target's own prior reply, if any.
func projectRound(round types.Round, target Target) []Message {
	user := round.User()
	if user == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(user.Content)

	// selfAgentID resolves to the actual speaker tag matched as self, so
	// the model_id-fallback path (target.AgentID == "") still finds the
	// right reply below instead of looking up AgentSpeaker("").
	selfAgentID := target.AgentID
	for i := range round.Messages {
		m := &round.Messages[i]
		agentID, isAgent := types.IsAgentSpeaker(m.Speaker)
		if !isAgent {
			continue
		}
		if isSelf(agentID, m.Metadata, target) {
			selfAgentID = agentID
			continue
		}
		b.WriteString("\n[")
		b.WriteString(peerLabel(agentID, m.Metadata))
		b.WriteString("]: ")
		b.WriteString(m.Content)
	}

	out := []Message{{Role: RoleUser, Content: b.String()}}
	if reply := round.AgentReply(selfAgentID); reply != nil {
		out = append(out, Message{Role: RoleAssistant, Content: reply.Content})
	}
	return out
}

// isSelf implements spec §4.7's self-suppression rule: match by
// agent_id first, falling back to model_id equality when the target
// carries no agent_id.
func isSelf(peerAgentID, peerMetadata string, target Target) bool {
	if target.AgentID != "" {
		return peerAgentID == target.AgentID
	}
	meta := parseAgentMetadata(peerMetadata)
	return meta.ModelID != "" && meta.ModelID == target.ModelID
}

func peerLabel(agentID, metadataJSON string) string {
	meta := parseAgentMetadata(metadataJSON)
	if meta.Name != "" {
		return meta.Name
	}
	if meta.ModelID != "" {
		return meta.ModelID
	}
	return agentID
}

func parseAgentMetadata(metadataJSON string) types.AgentMessageMetadata {
	var meta types.AgentMessageMetadata
	if metadataJSON == "" {
		return meta
	}
	_ = json.Unmarshal([]byte(metadataJSON), &meta)
	return meta
}

func formatAttachment(a Attachment) string {
	if a.Title == "" {
		return "Attachment:\n" + a.Content
	}
	return "Attachment: " + a.Title + "\n" + a.Content
}
