package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"turn-orchestrator/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSeedsDefaultProject(t *testing.T) {
	s := newTestStore(t)
	id, err := s.DefaultProjectID(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	proj, err := s.GetProject(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "default", proj.Name)
}

func TestAppendUserMessageIncrementsRoundCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, _ := s.DefaultProjectID(ctx)
	conv, err := s.CreateConversation(ctx, projectID, "t")
	require.NoError(t, err)

	_, err = s.AppendUserMessage(ctx, conv.ID, "hi", "{}")
	require.NoError(t, err)

	reloaded, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.RoundCount)

	_, err = s.AppendUserMessage(ctx, conv.ID, "again", "{}")
	require.NoError(t, err)
	reloaded, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.RoundCount)
}

func TestGetConversationWithRoundsGroupsMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, _ := s.DefaultProjectID(ctx)
	conv, err := s.CreateConversation(ctx, projectID, "t")
	require.NoError(t, err)

	userMsg, err := s.AppendUserMessage(ctx, conv.ID, "hi", "{}")
	require.NoError(t, err)
	_, err = s.AppendAgentMessage(ctx, conv.ID, "agent-a", userMsg.RoundNumber, "Echo: hi", "{}")
	require.NoError(t, err)

	withRounds, err := s.GetConversationWithRounds(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, withRounds.Rounds, 1)
	require.Len(t, withRounds.Rounds[0].Messages, 2)
	require.NotNil(t, withRounds.Rounds[0].User())
	require.NotNil(t, withRounds.Rounds[0].AgentReply("agent-a"))
}

func TestDeleteProjectCascadesToConversationAndMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	proj, err := s.CreateProject(ctx, "p", "", "")
	require.NoError(t, err)
	conv, err := s.CreateConversation(ctx, proj.ID, "t")
	require.NoError(t, err)
	_, err = s.AppendUserMessage(ctx, conv.ID, "hi", "{}")
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, proj.ID))

	_, err = s.GetConversation(ctx, conv.ID)
	require.Error(t, err)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestDeleteFileCascadesToChunksAndIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, _ := s.DefaultProjectID(ctx)

	content := "hello"
	f, err := s.UpsertFile(ctx, projectID, "docs/a.md", &content, nil, "hash", "text/markdown", int64(len(content)), "{}")
	require.NoError(t, err)

	chunk := types.ContentChunk{
		ID: NewID(), SourceType: types.SourceTypeFile, SourceID: f.ID, ProjectID: projectID,
		ChunkIndex: 0, Content: content, Location: `{}`, TokenCount: 2,
	}
	entry := types.RetrievalIndexEntry{ChunkID: chunk.ID, ProjectID: projectID, Content: content, Metadata: "{}"}
	require.NoError(t, s.InsertChunksWithIndex(ctx, []types.ContentChunk{chunk}, []types.RetrievalIndexEntry{entry}, "", ""))

	before, err := s.ChunksForSource(ctx, types.SourceTypeFile, f.ID)
	require.NoError(t, err)
	require.Len(t, before, 1)

	_, err = s.DeleteFile(ctx, f.ID)
	require.NoError(t, err)

	after, err := s.ChunksForSource(ctx, types.SourceTypeFile, f.ID)
	require.NoError(t, err)
	require.Empty(t, after)

	var indexCount int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM retrieval_index WHERE chunk_id = ?`, chunk.ID).Scan(&indexCount))
	require.Equal(t, 0, indexCount)
}

func TestUpsertFileReplacesBySamePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, _ := s.DefaultProjectID(ctx)

	c1 := "v1"
	f1, err := s.UpsertFile(ctx, projectID, "a.txt", &c1, nil, "h1", "text/plain", 2, "{}")
	require.NoError(t, err)

	c2 := "v2-longer"
	f2, err := s.UpsertFile(ctx, projectID, "a.txt", &c2, nil, "h2", "text/plain", 9, "{}")
	require.NoError(t, err)

	require.Equal(t, f1.ID, f2.ID)
	reloaded, err := s.GetFile(ctx, f1.ID)
	require.NoError(t, err)
	require.Equal(t, "h2", reloaded.ContentHash)
}
