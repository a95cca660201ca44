package storage

import (
	"context"
	"fmt"

	"github.com/Idosegev23/finhealer/internal/model"
)

// SaveAlert inserts an alert unless the user already has one with the same
// key, and reports whether it was inserted.
func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert *model.Alert) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if alert == nil {
		return false, fmt.Errorf("%w: alert", ErrNilParameter)
	}
	if err := validateUserScope(ctx, alert.UserID); err != nil {
		return false, err
	}
	if err := validateString(alert.Key, "key"); err != nil {
		return false, err
	}
	s.stamp(&alert.ID, &alert.CreatedAt)

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts (id, user_id, key, kind, message, magnitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.UserID, alert.Key, alert.Kind, alert.Message, alert.Magnitude, utc(alert.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListAlerts returns the user's most recent alerts. A non-positive limit
// returns all of them.
func (s *SQLiteStorage) ListAlerts(ctx context.Context, userID string, limit int) ([]model.Alert, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, key, kind, message, magnitude, created_at
		FROM alerts
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Key, &a.Kind, &a.Message, &a.Magnitude, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
