// Package indexer turns ProjectFiles and ConversationMessages into
// indexed ContentChunks + RetrievalIndex rows (spec §4.4).
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"turn-orchestrator/internal/chunker"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/store"
	"turn-orchestrator/pkg/types"
)

// fileMetadata is the subset of ProjectFile.Metadata the Indexer reads and
// writes. Unknown keys already present are preserved by round-tripping
// through a generic map.
type fileMetadata struct {
	RetrievalEligible *bool  `json:"retrieval_eligible,omitempty"`
	LastIndexedAt     string `json:"last_indexed_at,omitempty"`
}

// Store is the subset of *store.Store the Indexer depends on.
type Store interface {
	ChunksForSource(ctx context.Context, sourceType, sourceID string) ([]types.ContentChunk, error)
	GetFile(ctx context.Context, id string) (*types.ProjectFile, error)
	GetMessage(ctx context.Context, id string) (*types.ConversationMessage, error)
	ListFiles(ctx context.Context, projectID string, opts store.ListFilesOptions) ([]types.ProjectFile, error)
	InsertChunksWithIndex(ctx context.Context, chunks []types.ContentChunk, entries []types.RetrievalIndexEntry, fileIDToStamp, stampedMetadata string) error
}

// Blobs resolves on-disk file content the Indexer can't read inline.
type Blobs interface {
	Get(inlineText, location *string) ([]byte, error)
}

// Indexer writes chunks and lexical index rows for files and messages.
type Indexer struct {
	store      Store
	blobs      Blobs
	lineWindow int
	log        logging.Logger
}

// New builds an Indexer. lineWindow <= 0 uses chunker.DefaultLineWindow.
func New(s Store, blobs Blobs, lineWindow int, log logging.Logger) *Indexer {
	if lineWindow <= 0 {
		lineWindow = chunker.DefaultLineWindow
	}
	return &Indexer{store: s, blobs: blobs, lineWindow: lineWindow, log: log}
}

// Result is indexFile/indexMessage's return shape (spec §4.4).
type Result struct {
	SourceID      string   `json:"source_id"`
	ChunksWritten int      `json:"chunks_written"`
	ChunkIDs      []string `json:"chunk_ids"`
	Skipped       bool     `json:"skipped"`
}

func skipped(sourceID string) Result {
	return Result{SourceID: sourceID, Skipped: true}
}

// IndexFile indexes a ProjectFile's content. Idempotent: a file already
// bearing chunks is a no-op reported as skipped.
func (idx *Indexer) IndexFile(ctx context.Context, fileID string) (Result, error) {
	existing, err := idx.store.ChunksForSource(ctx, types.SourceTypeFile, fileID)
	if err != nil {
		return Result{}, err
	}
	if len(existing) > 0 {
		return skipped(fileID), nil
	}

	f, err := idx.store.GetFile(ctx, fileID)
	if err != nil {
		return Result{}, err
	}

	meta := parseFileMetadata(f.Metadata)
	if meta.RetrievalEligible != nil && !*meta.RetrievalEligible {
		return skipped(fileID), nil
	}

	content, err := idx.resolveFileContent(f)
	if err != nil {
		return Result{}, err
	}
	if content == nil {
		return skipped(fileID), nil
	}

	chunks := chunker.ChunkFile(f.Path, string(content), idx.lineWindow)
	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].ID = newChunkID()
		chunks[i].ProjectID = f.ProjectID
		chunks[i].SourceID = f.ID
		chunks[i].CreatedAt = now
	}
	entries := indexEntries(chunks)

	stamped := stampLastIndexed(f.Metadata)
	if err := idx.store.InsertChunksWithIndex(ctx, chunks, entries, f.ID, stamped); err != nil {
		return Result{}, err
	}

	if idx.log != nil {
		idx.log.InfoContext(ctx, "indexed file", "file_id", f.ID, "chunks", len(chunks))
	}
	return Result{SourceID: f.ID, ChunksWritten: len(chunks), ChunkIDs: chunkIDs(chunks)}, nil
}

// IndexMessage indexes a single ConversationMessage as one chunk, scoped
// to projectID (ConversationMessage carries no project_id column itself;
// callers resolve it from the owning Conversation).
func (idx *Indexer) IndexMessage(ctx context.Context, messageID, projectID string) (Result, error) {
	existing, err := idx.store.ChunksForSource(ctx, types.SourceTypeMessage, messageID)
	if err != nil {
		return Result{}, err
	}
	if len(existing) > 0 {
		return skipped(messageID), nil
	}

	m, err := idx.store.GetMessage(ctx, messageID)
	if err != nil {
		return Result{}, err
	}
	if m.Content == "" {
		return skipped(messageID), nil
	}

	chunk := chunker.ChunkMessage(m.RoundNumber, m.Speaker, m.Content)
	chunk.ID = newChunkID()
	chunk.SourceID = m.ID
	chunk.ProjectID = projectID
	chunk.CreatedAt = time.Now().UTC()
	chunks := []types.ContentChunk{chunk}
	entries := indexEntries(chunks)

	if err := idx.store.InsertChunksWithIndex(ctx, chunks, entries, "", ""); err != nil {
		return Result{}, err
	}
	if idx.log != nil {
		idx.log.InfoContext(ctx, "indexed message", "message_id", m.ID)
	}
	return Result{SourceID: m.ID, ChunksWritten: 1, ChunkIDs: chunkIDs(chunks)}, nil
}

// ReindexProjectResult is one file's outcome within a reindexProject batch.
type ReindexProjectResult struct {
	FileID string
	Result Result
	Err    string
}

// ReindexProject iterates every file in projectID and indexes it,
// collecting per-file results. A single file's failure is recorded but
// does not abort the batch (spec §4.4).
func (idx *Indexer) ReindexProject(ctx context.Context, projectID string) ([]ReindexProjectResult, error) {
	var out []ReindexProjectResult
	const pageSize = 200
	offset := 0
	for {
		files, err := idx.store.ListFiles(ctx, projectID, store.ListFilesOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return out, err
		}
		for _, f := range files {
			res, err := idx.IndexFile(ctx, f.ID)
			entry := ReindexProjectResult{FileID: f.ID, Result: res}
			if err != nil {
				entry.Err = err.Error()
			}
			out = append(out, entry)
		}
		if len(files) < pageSize {
			break
		}
		offset += pageSize
	}
	return out, nil
}

func (idx *Indexer) resolveFileContent(f *types.ProjectFile) ([]byte, error) {
	if f.Content == nil && f.ContentLocation == nil {
		return nil, nil
	}
	content, err := idx.blobs.Get(f.Content, f.ContentLocation)
	if err != nil {
		return nil, fmt.Errorf("resolving file content: %w", err)
	}
	return content, nil
}

func parseFileMetadata(raw string) fileMetadata {
	var m fileMetadata
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func stampLastIndexed(raw string) string {
	generic := map[string]interface{}{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &generic)
	}
	generic["last_indexed_at"] = nowRFC3339()
	out, err := json.Marshal(generic)
	if err != nil {
		return raw
	}
	return string(out)
}

// indexEntries builds the FTS5-indexed copy of each chunk's content.
// Normalizing to NFC here, ahead of tokenization, only affects the
// retrieval_index row — content_chunks.Content (and the chunker's
// byte-exact round-trip invariant) is untouched.
func indexEntries(chunks []types.ContentChunk) []types.RetrievalIndexEntry {
	entries := make([]types.RetrievalIndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = types.RetrievalIndexEntry{
			ChunkID:   c.ID,
			ProjectID: c.ProjectID,
			Content:   norm.NFC.String(c.Content),
			Metadata:  "{}",
		}
	}
	return entries
}

func chunkIDs(chunks []types.ContentChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func newChunkID() string {
	return store.NewID()
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
