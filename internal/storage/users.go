package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

const userColumns = `id, phone, name, phase, reflection, plaid_token,
	monthly_income, monthly_expenses, monthly_budget, created_at, updated_at`

// CreateUser inserts a user. An empty ID is generated and an empty phase
// starts at reflection.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if err := validateString(user.Phone, "phone"); err != nil {
		return err
	}
	if user.Phase == "" {
		user.Phase = model.PhaseReflection
	}
	if !user.Phase.Valid() {
		return common.Validationf("unknown phase %q", user.Phase)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Phone, user.Name, user.Phase, user.Reflection, user.PlaidToken,
		user.MonthlyIncome, user.MonthlyExpenses, user.MonthlyBudget, utc(user.CreatedAt), utc(user.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: phone %s", common.ErrDuplicateEntry, user.Phone)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser returns the user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

// GetUserByPhone returns the user owning a phone number.
func (s *SQLiteStorage) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(phone, "phone"); err != nil {
		return nil, err
	}
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
}

// ListUsers returns every user ordered by creation.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserPhase sets the user's phase. Phases never move backwards.
func (s *SQLiteStorage) UpdateUserPhase(ctx context.Context, userID string, phase model.Phase) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if !phase.Valid() {
		return common.Validationf("unknown phase %q", phase)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current model.Phase
		err := tx.QueryRowContext(ctx, `SELECT phase FROM users WHERE id = ?`, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %s", common.ErrNotFound, userID)
		}
		if err != nil {
			return fmt.Errorf("failed to read phase: %w", err)
		}
		if phase.Before(current) {
			return fmt.Errorf("%w: phase %s to %s", common.ErrInvalidTransition, current, phase)
		}
		_, err = tx.ExecContext(ctx, `UPDATE users SET phase = ?, updated_at = ? WHERE id = ?`,
			phase, utc(s.now()), userID)
		if err != nil {
			return fmt.Errorf("failed to update phase: %w", err)
		}
		return nil
	})
}

// UpdateUserProfile writes the editable profile fields. Phase and phone are
// not changed here.
func (s *SQLiteStorage) UpdateUserProfile(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if err := validateString(user.ID, "userID"); err != nil {
		return err
	}
	user.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, plaid_token = ?, monthly_income = ?, monthly_expenses = ?,
			monthly_budget = ?, updated_at = ?
		WHERE id = ?
	`, user.Name, user.PlaidToken, user.MonthlyIncome, user.MonthlyExpenses,
		user.MonthlyBudget, utc(user.UpdatedAt), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res, "user", user.ID)
}

// SaveReflection stores the user's reflection answer.
func (s *SQLiteStorage) SaveReflection(ctx context.Context, userID, text string) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET reflection = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(text), utc(s.now()), userID)
	if err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}
	return requireAffected(res, "user", userID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Phase, &u.Reflection, &u.PlaidToken,
		&u.MonthlyIncome, &u.MonthlyExpenses, &u.MonthlyBudget, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", common.ErrNotFound, entity, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
