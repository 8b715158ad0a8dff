// Package transcript renders a conversation's persisted rounds into the
// two export formats named in spec §6: a human-readable Markdown
// document and a structured JSON document, and writes either to the
// configured transcripts directory as the turn's best-effort autosave
// side effect.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turn-orchestrator/pkg/types"
)

// FormatMarkdown and FormatJSON are the two recognised export/autosave
// formats (spec §6).
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// RenderMarkdown builds the Markdown transcript for conv (spec §6): a
// title and start time, then per round a "## Round N" section with its
// timestamp, the user's message in a fenced code block, and one fenced
// section per agent reply named by its stored name (falling back to
// model_id, then agent_id). No attachments line is rendered.
func RenderMarkdown(conv types.ConversationWithRounds) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Conversation %s\n", conv.Conversation.ID)
	fmt.Fprintf(&b, "Started: %s\n\n", conv.Conversation.CreatedAt.UTC().Format(time.RFC3339))

	for _, round := range conv.Rounds {
		fmt.Fprintf(&b, "## Round %d\n", round.RoundNumber)

		user := round.User()
		if user != nil {
			fmt.Fprintf(&b, "_Time: %s_\n\n", user.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(&b, "### User\n```\n%s\n```\n\n", user.Content)
		}

		for _, m := range round.Messages {
			agentID, ok := types.IsAgentSpeaker(m.Speaker)
			if !ok {
				continue
			}
			name := agentReplyLabel(agentID, m.Metadata)
			fmt.Fprintf(&b, "### %s\n```\n%s\n```\n\n", name, m.Content)
		}
	}

	return b.String()
}

// jsonRound and jsonTranscript give the JSON export a flatter, renamed
// shape than the internal types.ConversationWithRounds — stable across
// any future renaming of the store's own column names.
type jsonMessage struct {
	Speaker   string    `json:"speaker"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type jsonRound struct {
	RoundNumber int           `json:"round_number"`
	Messages    []jsonMessage `json:"messages"`
}

type jsonTranscript struct {
	ConversationID string      `json:"conversation_id"`
	Started        time.Time   `json:"started"`
	Rounds         []jsonRound `json:"rounds"`
}

// RenderJSON builds the JSON transcript for conv (spec §6).
func RenderJSON(conv types.ConversationWithRounds) ([]byte, error) {
	out := jsonTranscript{
		ConversationID: conv.Conversation.ID,
		Started:        conv.Conversation.CreatedAt,
	}
	for _, round := range conv.Rounds {
		jr := jsonRound{RoundNumber: round.RoundNumber}
		for _, m := range round.Messages {
			name := ""
			if agentID, ok := types.IsAgentSpeaker(m.Speaker); ok {
				name = agentReplyLabel(agentID, m.Metadata)
			}
			jr.Messages = append(jr.Messages, jsonMessage{
				Speaker:   m.Speaker,
				Name:      name,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
		out.Rounds = append(out.Rounds, jr)
	}
	return json.MarshalIndent(out, "", "  ")
}

func agentReplyLabel(agentID, metadataJSON string) string {
	var meta types.AgentMessageMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err == nil {
		if meta.Name != "" {
			return meta.Name
		}
		if meta.ModelID != "" {
			return meta.ModelID
		}
	}
	return agentID
}

// Store is the subset of *store.Store the Writer needs; kept narrow so
// this package doesn't import internal/store.
type Store interface {
	GetConversationWithRounds(ctx context.Context, id string) (*types.ConversationWithRounds, error)
}

// Writer renders and writes transcripts to a directory on disk.
type Writer struct {
	store         Store
	dir           string
	defaultFormat string
}

// NewWriter builds a Writer rooted at dir, falling back to
// defaultFormat (spec's configured Transcripts.DefaultFormat) whenever
// Write is called with an empty format.
func NewWriter(store Store, dir, defaultFormat string) *Writer {
	if defaultFormat == "" {
		defaultFormat = FormatMarkdown
	}
	return &Writer{store: store, dir: dir, defaultFormat: defaultFormat}
}

// Write renders conversationID's transcript in format (or the writer's
// default, if format is empty) and writes it to
// "<dir>/conversation-<id>.<ext>", creating the directory if needed.
func (w *Writer) Write(ctx context.Context, conversationID string, format string) error {
	if format == "" {
		format = w.defaultFormat
	}

	conv, err := w.store.GetConversationWithRounds(ctx, conversationID)
	if err != nil {
		return err
	}

	var ext string
	var data []byte
	switch format {
	case FormatJSON:
		ext = "json"
		data, err = RenderJSON(*conv)
		if err != nil {
			return err
		}
	default:
		ext = "md"
		data = []byte(RenderMarkdown(*conv))
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(w.dir, fmt.Sprintf("conversation-%s.%s", conversationID, ext))
	return os.WriteFile(path, data, 0o644)
}
