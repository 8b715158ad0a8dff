package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "turn-orchestrator/internal/errors"
	"turn-orchestrator/pkg/types"
)

// CreateProject inserts a new Project.
func (s *Store) CreateProject(ctx context.Context, name, description, settings string) (*types.Project, error) {
	now := time.Now().UTC()
	p := &types.Project{
		ID:          NewID(),
		Name:        name,
		Description: description,
		Settings:    orDefault(settings, "{}"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, description, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, p.Settings, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject loads a Project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, settings, created_at, updated_at FROM projects WHERE id = ?`, id)
	p := &types.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Settings, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("project", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes a Project; cascades to its Conversations and
// ProjectFiles (and transitively their Messages/ContentChunks/RetrievalIndex
// rows) via declared foreign keys and triggers (spec §4.1).
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("project", id)
		}
		return nil
	})
}
