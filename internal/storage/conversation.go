package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Idosegev23/finhealer/internal/model"
)

// GetConversationState returns the stored router state, or an empty state
// for a user that has none yet.
func (s *SQLiteStorage) GetConversationState(ctx context.Context, userID string) (*model.ConversationState, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	state := &model.ConversationState{UserID: userID}
	var pending sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT pending, retries FROM conversation_state WHERE user_id = ?
	`, userID).Scan(&pending, &state.Retries)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation state: %w", err)
	}

	if pending.Valid && pending.String != "" {
		var p model.PendingAction
		if err := json.Unmarshal([]byte(pending.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode pending action: %w", err)
		}
		state.Pending = &p
	}
	return state, nil
}

// SaveConversationState replaces the stored router state.
func (s *SQLiteStorage) SaveConversationState(ctx context.Context, state *model.ConversationState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: state", ErrNilParameter)
	}
	if err := validateString(state.UserID, "userID"); err != nil {
		return err
	}

	var pending any
	if state.Pending != nil {
		data, err := json.Marshal(state.Pending)
		if err != nil {
			return fmt.Errorf("failed to encode pending action: %w", err)
		}
		pending = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_state (user_id, pending, retries, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pending = excluded.pending,
			retries = excluded.retries,
			updated_at = excluded.updated_at
	`, state.UserID, pending, state.Retries, utc(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}
