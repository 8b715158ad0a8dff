package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turn-orchestrator/internal/store"
	"turn-orchestrator/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedFileChunk(t *testing.T, s *store.Store, projectID, path, content string) {
	t.Helper()
	ctx := context.Background()
	loc := types.FileChunkLocation{Path: path, StartLine: 1, EndLine: 1, StartChar: 0, EndChar: len(content)}
	locBytes, err := json.Marshal(loc)
	require.NoError(t, err)

	chunk := types.ContentChunk{
		ID: store.NewID(), SourceType: types.SourceTypeFile, SourceID: store.NewID(), ProjectID: projectID,
		ChunkIndex: 0, Content: content, Location: string(locBytes), TokenCount: len(content)/4 + 1,
	}
	entry := types.RetrievalIndexEntry{ChunkID: chunk.ID, ProjectID: projectID, Content: content, Metadata: "{}"}
	require.NoError(t, s.InsertChunksWithIndex(ctx, []types.ContentChunk{chunk}, []types.RetrievalIndexEntry{entry}, "", ""))
}

func seedMessageChunk(t *testing.T, s *store.Store, projectID, content string, round int, speaker string) {
	t.Helper()
	ctx := context.Background()
	loc := types.MessageChunkLocation{RoundNumber: round, Speaker: speaker}
	locBytes, err := json.Marshal(loc)
	require.NoError(t, err)

	chunk := types.ContentChunk{
		ID: store.NewID(), SourceType: types.SourceTypeMessage, SourceID: store.NewID(), ProjectID: projectID,
		ChunkIndex: 0, Content: content, Location: string(locBytes), TokenCount: len(content)/4 + 1,
	}
	entry := types.RetrievalIndexEntry{ChunkID: chunk.ID, ProjectID: projectID, Content: content, Metadata: "{}"}
	require.NoError(t, s.InsertChunksWithIndex(ctx, []types.ContentChunk{chunk}, []types.RetrievalIndexEntry{entry}, "", ""))
}

func TestToPhraseLiteralEscapesAndWraps(t *testing.T) {
	assert.Equal(t, `""`, ToPhraseLiteral(""))
	assert.Equal(t, `""`, ToPhraseLiteral("   "))
	assert.Equal(t, `"hello world"`, ToPhraseLiteral("  hello world  "))
	assert.Equal(t, `"say ""hi"""`, ToPhraseLiteral(`say "hi"`))
}

func TestSearchFindsMatchingChunk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, err := s.DefaultProjectID(ctx)
	require.NoError(t, err)

	seedFileChunk(t, s, projectID, "docs/readme.md", "the quick brown fox jumps")
	seedFileChunk(t, s, projectID, "docs/other.md", "completely unrelated text")

	searcher := NewFromStore(s, 100)
	resp, err := searcher.Search(ctx, projectID, "fox", 10, 0, Filters{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "docs/readme.md", resp.Results[0].Path)
	assert.Contains(t, resp.Results[0].Highlighted, "**fox**")
	assert.Greater(t, resp.Results[0].RelevanceScore, 0.0)
}

func TestSearchExcludeConversationsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, err := s.DefaultProjectID(ctx)
	require.NoError(t, err)

	seedFileChunk(t, s, projectID, "a.md", "shared keyword here")
	seedMessageChunk(t, s, projectID, "shared keyword here too", 1, "user")

	searcher := NewFromStore(s, 100)
	resp, err := searcher.Search(ctx, projectID, "keyword", 10, 0, Filters{ExcludeConversations: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, types.SourceTypeFile, resp.Results[0].SourceType)
}

func TestSearchFileTypesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, err := s.DefaultProjectID(ctx)
	require.NoError(t, err)

	seedFileChunk(t, s, projectID, "a.go", "matching content here")
	seedFileChunk(t, s, projectID, "a.md", "matching content here")

	searcher := NewFromStore(s, 100)
	resp, err := searcher.Search(ctx, projectID, "matching", 10, 0, Filters{FileTypes: []string{".go"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.go", resp.Results[0].Path)
}

func TestSearchMessageResultCarriesRoundAndSpeaker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, err := s.DefaultProjectID(ctx)
	require.NoError(t, err)

	seedMessageChunk(t, s, projectID, "answer to the question", 4, "agent:a")

	searcher := NewFromStore(s, 100)
	resp, err := searcher.Search(ctx, projectID, "question", 10, 0, Filters{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 4, resp.Results[0].RoundNumber)
	assert.Equal(t, "agent:a", resp.Results[0].Speaker)
}

func TestSearchRespectsMaxLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID, err := s.DefaultProjectID(ctx)
	require.NoError(t, err)
	seedFileChunk(t, s, projectID, "a.md", "word")

	searcher := NewFromStore(s, 5)
	resp, err := searcher.Search(ctx, projectID, "word", 1000, 0, Filters{})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Limit)
}
