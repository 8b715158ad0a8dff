package transcript

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"turn-orchestrator/pkg/types"
)

func sampleConversation() types.ConversationWithRounds {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta, _ := json.Marshal(types.AgentMessageMetadata{Provider: "mock", ModelID: "mock-echo", Name: "Scout"})
	return types.ConversationWithRounds{
		Conversation: types.Conversation{ID: "conv-1", CreatedAt: started},
		Rounds: []types.Round{
			{
				RoundNumber: 1,
				Messages: []types.ConversationMessage{
					{Speaker: types.SpeakerUser, Content: "hi", CreatedAt: started},
					{Speaker: types.AgentSpeaker("a"), Content: "Echo: hi", Metadata: string(meta), CreatedAt: started},
				},
			},
		},
	}
}

func TestRenderMarkdownIncludesRoundAndSpeakerSections(t *testing.T) {
	md := RenderMarkdown(sampleConversation())
	require.Contains(t, md, "# Conversation conv-1")
	require.Contains(t, md, "## Round 1")
	require.Contains(t, md, "### User")
	require.Contains(t, md, "hi")
	require.Contains(t, md, "### Scout")
	require.Contains(t, md, "Echo: hi")
}

func TestRenderMarkdownFallsBackToAgentIDWithoutMetadata(t *testing.T) {
	conv := types.ConversationWithRounds{
		Conversation: types.Conversation{ID: "conv-2"},
		Rounds: []types.Round{{
			RoundNumber: 1,
			Messages: []types.ConversationMessage{
				{Speaker: types.AgentSpeaker("agent-x"), Content: "reply", Metadata: "{}"},
			},
		}},
	}
	md := RenderMarkdown(conv)
	require.Contains(t, md, "### agent-x")
}

func TestRenderJSONRoundTripsStructure(t *testing.T) {
	data, err := RenderJSON(sampleConversation())
	require.NoError(t, err)

	var parsed jsonTranscript
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, "conv-1", parsed.ConversationID)
	require.Len(t, parsed.Rounds, 1)
	require.Len(t, parsed.Rounds[0].Messages, 2)
	require.Equal(t, "Scout", parsed.Rounds[0].Messages[1].Name)
}

type fakeStore struct {
	conv types.ConversationWithRounds
	err  error
}

func (f *fakeStore) GetConversationWithRounds(ctx context.Context, id string) (*types.ConversationWithRounds, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := f.conv
	return &c, nil
}

func TestWriterWritesMarkdownFile(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(&fakeStore{conv: sampleConversation()}, dir, FormatMarkdown)

	require.NoError(t, w.Write(context.Background(), "conv-1", ""))

	data, err := os.ReadFile(filepath.Join(dir, "conversation-conv-1.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "# Conversation conv-1")
}

func TestWriterWritesJSONFileWhenFormatOverridden(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(&fakeStore{conv: sampleConversation()}, dir, FormatMarkdown)

	require.NoError(t, w.Write(context.Background(), "conv-1", FormatJSON))

	_, err := os.Stat(filepath.Join(dir, "conversation-conv-1.json"))
	require.NoError(t, err)
}

func TestWriterCreatesDirectoryIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "transcripts")
	w := NewWriter(&fakeStore{conv: sampleConversation()}, dir, FormatMarkdown)

	require.NoError(t, w.Write(context.Background(), "conv-1", ""))

	_, err := os.Stat(dir)
	require.NoError(t, err)
}
