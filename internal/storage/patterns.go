package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// GetVendorPattern returns the user's rule for a normalized vendor.
func (s *SQLiteStorage) GetVendorPattern(ctx context.Context, userID, vendor string) (*model.VendorPattern, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}

	var p model.VendorPattern
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, vendor, category, confidence, confirmation_count, last_updated
		FROM vendor_patterns
		WHERE user_id = ? AND vendor = ?
	`, userID, vendor).Scan(&p.UserID, &p.Vendor, &p.Category, &p.Confidence, &p.ConfirmationCount, &p.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pattern %s", common.ErrNotFound, vendor)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern: %w", err)
	}
	return &p, nil
}

// SaveVendorPattern inserts or replaces a rule. Concurrent writers for the
// same key resolve as last write wins.
func (s *SQLiteStorage) SaveVendorPattern(ctx context.Context, pattern *model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}
	if pattern.LastUpdated.IsZero() {
		pattern.LastUpdated = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor_patterns (user_id, vendor, category, confidence, confirmation_count, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, vendor) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence,
			confirmation_count = excluded.confirmation_count,
			last_updated = excluded.last_updated
	`, pattern.UserID, pattern.Vendor, pattern.Category, pattern.Confidence,
		pattern.ConfirmationCount, utc(pattern.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// DeleteVendorPattern removes a rule.
func (s *SQLiteStorage) DeleteVendorPattern(ctx context.Context, userID, vendor string) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM vendor_patterns WHERE user_id = ? AND vendor = ?`, userID, vendor)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}
	return requireAffected(res, "pattern", vendor)
}

// ListVendorPatterns returns the user's rules, most confident first.
func (s *SQLiteStorage) ListVendorPatterns(ctx context.Context, userID string) ([]model.VendorPattern, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, vendor, category, confidence, confirmation_count, last_updated
		FROM vendor_patterns
		WHERE user_id = ?
		ORDER BY confidence DESC, vendor
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.VendorPattern
	for rows.Next() {
		var p model.VendorPattern
		if err := rows.Scan(&p.UserID, &p.Vendor, &p.Category, &p.Confidence, &p.ConfirmationCount, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
