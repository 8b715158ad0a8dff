// Package types holds the canonical domain types shared across the Store,
// Chunker, Indexer, Search, ViewBuilder, and Orchestrator packages.
package types

import "time"

// Project is the top-level ownership scope for conversations and files.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Settings    string    `json:"settings"` // opaque JSON blob
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Conversation belongs to a Project and accumulates rounds of messages.
type Conversation struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	RoundCount int       `json:"round_count"`

	AutosaveEnabled bool   `json:"autosave_enabled"`
	AutosaveFormat  string `json:"autosave_format,omitempty"`
}

// Speaker identities used in ConversationMessage.Speaker.
const (
	SpeakerUser        = "user"
	agentSpeakerPrefix = "agent:"
)

// AgentSpeaker renders the speaker tag for a given agent id.
func AgentSpeaker(agentID string) string {
	return agentSpeakerPrefix + agentID
}

// IsAgentSpeaker reports whether speaker denotes an agent, returning its id.
func IsAgentSpeaker(speaker string) (agentID string, ok bool) {
	if len(speaker) > len(agentSpeakerPrefix) && speaker[:len(agentSpeakerPrefix)] == agentSpeakerPrefix {
		return speaker[len(agentSpeakerPrefix):], true
	}
	return "", false
}

// AgentMessageMetadata is the JSON payload stored in an agent-speaker
// ConversationMessage.Metadata, carrying the identity the message was
// produced under so later turns can resolve peer names and detect
// self-authorship without re-deriving it from agent_id alone.
type AgentMessageMetadata struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	Name     string `json:"name,omitempty"`
}

// ConversationMessage is write-once after creation.
type ConversationMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	RoundNumber    int       `json:"round_number"`
	Speaker        string    `json:"speaker"`
	Content        string    `json:"content"`
	Metadata       string    `json:"metadata"` // opaque JSON blob
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectFile is stored inline or on disk, never both.
type ProjectFile struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Path            string    `json:"path"`
	Content         *string   `json:"content,omitempty"`
	ContentLocation *string   `json:"content_location,omitempty"`
	ContentHash     string    `json:"content_hash"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	Metadata        string    `json:"metadata"` // opaque JSON blob
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Source types for ContentChunk.
const (
	SourceTypeFile    = "file"
	SourceTypeMessage = "conversation_message"
)

// ContentChunk is a unit of indexable content bounded by its source's lifetime.
type ContentChunk struct {
	ID         string    `json:"id"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	ProjectID  string    `json:"project_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Location   string    `json:"location"` // opaque JSON
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileChunkLocation is the location payload for file-sourced chunks.
type FileChunkLocation struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// MessageChunkLocation is the location payload for message-sourced chunks.
type MessageChunkLocation struct {
	RoundNumber int    `json:"round_number"`
	Speaker     string `json:"speaker"`
}

// RetrievalIndexEntry is the payload row paired 1:1 with a ContentChunk.
type RetrievalIndexEntry struct {
	ChunkID   string `json:"chunk_id"`
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
	Metadata  string `json:"metadata"`
}

// Round is a derived concept: the set of messages sharing
// (conversation_id, round_number) — one user message plus zero or more
// agent replies, read back in (round_number, created_at) order.
type Round struct {
	RoundNumber int                    `json:"round_number"`
	Messages    []ConversationMessage  `json:"messages"`
}

// User returns the round's user-speaker message, if present.
func (r Round) User() *ConversationMessage {
	for i := range r.Messages {
		if r.Messages[i].Speaker == SpeakerUser {
			return &r.Messages[i]
		}
	}
	return nil
}

// AgentReply returns the round's reply from the given agent id, if present.
func (r Round) AgentReply(agentID string) *ConversationMessage {
	want := AgentSpeaker(agentID)
	for i := range r.Messages {
		if r.Messages[i].Speaker == want {
			return &r.Messages[i]
		}
	}
	return nil
}

// ConversationWithRounds bundles a Conversation with its reconstructed
// Rounds, as returned by GET /conversations/{id}.
type ConversationWithRounds struct {
	Conversation Conversation `json:"conversation"`
	Rounds       []Round      `json:"rounds"`
}
