package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turn-orchestrator/pkg/types"
)

// ChunksForSource returns the chunks already indexed for (sourceType,
// sourceID), used by the Indexer's idempotence guard (spec §4.4: "if any
// chunk exists for (source_type, source_id), the operation is a no-op").
func (s *Store) ChunksForSource(ctx context.Context, sourceType, sourceID string) ([]types.ContentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_type, source_id, project_id, chunk_index, content, location, token_count, created_at
		 FROM content_chunks WHERE source_type = ? AND source_id = ? ORDER BY chunk_index`,
		sourceType, sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ContentChunk
	for rows.Next() {
		var c types.ContentChunk
		if err := rows.Scan(&c.ID, &c.SourceType, &c.SourceID, &c.ProjectID, &c.ChunkIndex, &c.Content, &c.Location, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertChunksWithIndex writes each ContentChunk paired with its
// RetrievalIndex row inside one transaction (spec §4.4's write pattern),
// then, if fileIDToStamp is non-empty, writes stampedMetadata (typically
// carrying last_indexed_at) onto that file in the same transaction.
func (s *Store) InsertChunksWithIndex(ctx context.Context, chunks []types.ContentChunk, entries []types.RetrievalIndexEntry, fileIDToStamp, stampedMetadata string) error {
	if len(chunks) != len(entries) {
		return fmt.Errorf("chunk/index count mismatch: %d chunks, %d index entries", len(chunks), len(entries))
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range chunks {
			c := chunks[i]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO content_chunks (id, source_type, source_id, project_id, chunk_index, content, location, token_count, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.SourceType, c.SourceID, c.ProjectID, c.ChunkIndex, c.Content, c.Location, c.TokenCount, c.CreatedAt,
			); err != nil {
				return err
			}
			e := entries[i]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO retrieval_index (content, chunk_id, project_id, metadata) VALUES (?, ?, ?, ?)`,
				e.Content, e.ChunkID, e.ProjectID, e.Metadata,
			); err != nil {
				return err
			}
		}

		if fileIDToStamp != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE project_files SET metadata = ?, updated_at = ? WHERE id = ?`,
				stampedMetadata, time.Now().UTC(), fileIDToStamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// DB exposes the underlying *sql.DB for internal/search's dynamic,
// filter-composed FTS5 queries — the only component allowed to read
// outside the Store's own methods, since Search's predicate shape varies
// per call in ways a fixed method set cannot express cleanly.
func (s *Store) DB() *sql.DB {
	return s.db
}
