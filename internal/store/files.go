package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/pkg/types"
)

// UpsertFile inserts or replaces a ProjectFile by (project_id, path) (spec
// §6's "upsert by (project_id, path)"). Exactly one of content/contentLoc
// must be non-empty.
func (s *Store) UpsertFile(ctx context.Context, projectID, path string, content, contentLoc *string, hash, mimeType string, size int64, metadata string) (*types.ProjectFile, error) {
	now := time.Now().UTC()
	f := &types.ProjectFile{
		ProjectID:       projectID,
		Path:            path,
		Content:         content,
		ContentLocation: contentLoc,
		ContentHash:     hash,
		MimeType:        mimeType,
		SizeBytes:       size,
		Metadata:        orDefault(metadata, "{}"),
		UpdatedAt:       now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		row := tx.QueryRowContext(ctx, `SELECT id, created_at FROM project_files WHERE project_id = ? AND path = ?`, projectID, path)
		var createdAt time.Time
		scanErr := row.Scan(&existingID, &createdAt)

		switch {
		case scanErr == nil:
			f.ID = existingID
			f.CreatedAt = createdAt
			_, err := tx.ExecContext(ctx,
				`UPDATE project_files SET content=?, content_location=?, content_hash=?, mime_type=?, size_bytes=?, metadata=?, updated_at=? WHERE id=?`,
				f.Content, f.ContentLocation, f.ContentHash, f.MimeType, f.SizeBytes, f.Metadata, f.UpdatedAt, f.ID,
			)
			return err
		case errors.Is(scanErr, sql.ErrNoRows):
			f.ID = NewID()
			f.CreatedAt = now
			_, err := tx.ExecContext(ctx,
				`INSERT INTO project_files (id, project_id, path, content, content_location, content_hash, mime_type, size_bytes, metadata, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.ID, f.ProjectID, f.Path, f.Content, f.ContentLocation, f.ContentHash, f.MimeType, f.SizeBytes, f.Metadata, f.CreatedAt, f.UpdatedAt,
			)
			if isFKViolation(err) {
				return apperrors.NewNotFoundError("project", projectID)
			}
			return err
		default:
			return scanErr
		}
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetFile loads a ProjectFile by id.
func (s *Store) GetFile(ctx context.Context, id string) (*types.ProjectFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, path, content, content_location, content_hash, mime_type, size_bytes, metadata, created_at, updated_at
		 FROM project_files WHERE id = ?`, id)
	return scanFile(row)
}

func scanFile(row *sql.Row) (*types.ProjectFile, error) {
	f := &types.ProjectFile{}
	err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &f.ContentLocation, &f.ContentHash, &f.MimeType, &f.SizeBytes, &f.Metadata, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("file", "")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFilesOptions filters/paginates ListFiles.
type ListFilesOptions struct {
	Limit, Offset int
	PathLike      string // SQL LIKE pattern, '*' already translated to '%' by the caller
}

// ListFiles returns a page of ProjectFiles for projectID.
func (s *Store) ListFiles(ctx context.Context, projectID string, opts ListFilesOptions) ([]types.ProjectFile, error) {
	query := `SELECT id, project_id, path, content, content_location, content_hash, mime_type, size_bytes, metadata, created_at, updated_at
	          FROM project_files WHERE project_id = ?`
	args := []interface{}{projectID}

	if opts.PathLike != "" {
		query += ` AND path LIKE ?`
		args = append(args, opts.PathLike)
	}
	query += ` ORDER BY path LIMIT ? OFFSET ?`
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ProjectFile
	for rows.Next() {
		var f types.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &f.ContentLocation, &f.ContentHash, &f.MimeType, &f.SizeBytes, &f.Metadata, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a ProjectFile, returning the deleted row so callers
// (the HTTP layer) can unlink its on-disk blob. Cascades to its
// ContentChunks and their RetrievalIndex rows via triggers.
func (s *Store) DeleteFile(ctx context.Context, id string) (*types.ProjectFile, error) {
	f, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM project_files WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("file", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFileMetadata overwrites a file's metadata blob. The Indexer does
// not call it; it stamps last_indexed_at through InsertChunksWithIndex.
func (s *Store) UpdateFileMetadata(ctx context.Context, id, metadata string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE project_files SET metadata = ?, updated_at = ? WHERE id = ?`, metadata, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("file", id)
		}
		return nil
	})
}

// ToSQLLike translates a '*'-glob filter into a SQL LIKE pattern.
func ToSQLLike(glob string) string {
	if glob == "" {
		return ""
	}
	return strings.ReplaceAll(glob, "*", "%")
}
