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

// CreateConversation inserts a new Conversation under projectID.
func (s *Store) CreateConversation(ctx context.Context, projectID, title string) (*types.Conversation, error) {
	now := time.Now().UTC()
	c := &types.Conversation{
		ID:        NewID(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, project_id, title, summary, created_at, updated_at, round_count) VALUES (?, ?, ?, '', ?, ?, 0)`,
			c.ID, c.ProjectID, c.Title, c.CreatedAt, c.UpdatedAt,
		)
		if isFKViolation(err) {
			return apperrors.NewNotFoundError("project", projectID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation loads a Conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, summary, created_at, updated_at, round_count, autosave_enabled, autosave_format FROM conversations WHERE id = ?`, id)
	c := &types.Conversation{}
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Summary, &c.CreatedAt, &c.UpdatedAt, &c.RoundCount, &c.AutosaveEnabled, &c.AutosaveFormat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetAutosave toggles a conversation's autosave setting (spec §6 POST
// /conversations/{id}/autosave). format is stored as-is; callers resolve
// an empty format to the configured default at write time.
func (s *Store) SetAutosave(ctx context.Context, conversationID string, enabled bool, format string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET autosave_enabled = ?, autosave_format = ? WHERE id = ?`,
			enabled, format, conversationID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("conversation", conversationID)
		}
		return nil
	})
}

// GetMessage loads a single ConversationMessage by id.
func (s *Store) GetMessage(ctx context.Context, id string) (*types.ConversationMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, round_number, speaker, content, metadata, created_at
		 FROM conversation_messages WHERE id = ?`, id)
	m := &types.ConversationMessage{}
	err := row.Scan(&m.ID, &m.ConversationID, &m.RoundNumber, &m.Speaker, &m.Content, &m.Metadata, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("message", id)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteConversation removes a Conversation; cascades to its Messages (and
// transitively their ContentChunks/RetrievalIndex rows).
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewNotFoundError("conversation", id)
		}
		return nil
	})
}

// AppendUserMessage persists round N = round_count+1's user message and
// bumps round_count and updated_at, all inside one transaction (spec
// §4.1's "multi-statement mutations execute in one transaction"). Returns
// the persisted message and its round number.
func (s *Store) AppendUserMessage(ctx context.Context, conversationID, content, metadata string) (*types.ConversationMessage, error) {
	var msg *types.ConversationMessage
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var roundCount int
		row := tx.QueryRowContext(ctx, `SELECT round_count FROM conversations WHERE id = ?`, conversationID)
		if err := row.Scan(&roundCount); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFoundError("conversation", conversationID)
			}
			return err
		}

		round := roundCount + 1
		m := &types.ConversationMessage{
			ID:             NewID(),
			ConversationID: conversationID,
			RoundNumber:    round,
			Speaker:        types.SpeakerUser,
			Content:        content,
			Metadata:       orDefault(metadata, "{}"),
			CreatedAt:      now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, round_number, speaker, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.RoundNumber, m.Speaker, m.Content, m.Metadata, m.CreatedAt,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET round_count = ?, updated_at = ? WHERE id = ?`,
			round, now, conversationID,
		); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendAgentMessage persists one agent's reply within round roundNumber.
func (s *Store) AppendAgentMessage(ctx context.Context, conversationID, agentID string, roundNumber int, content, metadata string) (*types.ConversationMessage, error) {
	now := time.Now().UTC()
	m := &types.ConversationMessage{
		ID:             NewID(),
		ConversationID: conversationID,
		RoundNumber:    roundNumber,
		Speaker:        types.AgentSpeaker(agentID),
		Content:        content,
		Metadata:       orDefault(metadata, "{}"),
		CreatedAt:      now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, round_number, speaker, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.RoundNumber, m.Speaker, m.Content, m.Metadata, m.CreatedAt,
		)
		if isFKViolation(err) {
			return apperrors.NewNotFoundError("conversation", conversationID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages reads back all messages for a conversation in
// (round_number, created_at) order (spec §4.8's ordering guarantee).
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]types.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, round_number, speaker, content, metadata, created_at
		 FROM conversation_messages WHERE conversation_id = ? ORDER BY round_number, created_at`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ConversationMessage
	for rows.Next() {
		var m types.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.RoundNumber, &m.Speaker, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetConversationWithRounds loads a Conversation and regroups its messages
// into Rounds by round_number, preserving (round_number, created_at) order.
func (s *Store) GetConversationWithRounds(ctx context.Context, id string) (*types.ConversationWithRounds, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	var rounds []types.Round
	var current *types.Round
	for _, m := range msgs {
		if current == nil || current.RoundNumber != m.RoundNumber {
			rounds = append(rounds, types.Round{RoundNumber: m.RoundNumber})
			current = &rounds[len(rounds)-1]
		}
		current.Messages = append(current.Messages, m)
	}

	return &types.ConversationWithRounds{Conversation: *conv, Rounds: rounds}, nil
}

func isFKViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
