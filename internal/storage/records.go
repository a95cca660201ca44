package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Records are never hard-deleted; Deactivate* clears the active flag.

// CreateLoan inserts a loan.
func (s *SQLiteStorage) CreateLoan(ctx context.Context, loan *model.Loan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if loan == nil {
		return fmt.Errorf("%w: loan", ErrNilParameter)
	}
	if err := validateUserScope(ctx, loan.UserID); err != nil {
		return err
	}
	if err := validateString(loan.Lender, "lender"); err != nil {
		return err
	}
	if loan.Balance < 0 || loan.Principal < 0 || loan.MonthlyPayment < 0 {
		return common.Validationf("loan amounts must not be negative")
	}
	s.stamp(&loan.ID, &loan.CreatedAt)
	loan.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (id, user_id, lender, principal, balance, monthly_payment,
			interest_rate, start_date, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, loan.ID, loan.UserID, loan.Lender, loan.Principal, loan.Balance, loan.MonthlyPayment,
		loan.InterestRate, zeroAsNull(loan.StartDate), utc(loan.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// ListLoans returns the user's loans, newest first.
func (s *SQLiteStorage) ListLoans(ctx context.Context, userID string, activeOnly bool) ([]model.Loan, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, lender, principal, balance, monthly_payment, interest_rate,
			start_date, active, created_at
		FROM loans
		WHERE user_id = ?`+activeClause(activeOnly)+`
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var loans []model.Loan
	for rows.Next() {
		var l model.Loan
		var start sql.NullTime
		if err := rows.Scan(&l.ID, &l.UserID, &l.Lender, &l.Principal, &l.Balance, &l.MonthlyPayment,
			&l.InterestRate, &start, &l.Active, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		if start.Valid {
			l.StartDate = start.Time
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// UpdateLoan writes the editable loan fields.
func (s *SQLiteStorage) UpdateLoan(ctx context.Context, loan *model.Loan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if loan == nil {
		return fmt.Errorf("%w: loan", ErrNilParameter)
	}
	if err := validateUserScope(ctx, loan.UserID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET lender = ?, principal = ?, balance = ?, monthly_payment = ?,
			interest_rate = ?, start_date = ?
		WHERE user_id = ? AND id = ? AND active = 1
	`, loan.Lender, loan.Principal, loan.Balance, loan.MonthlyPayment, loan.InterestRate,
		zeroAsNull(loan.StartDate), loan.UserID, loan.ID)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return requireAffected(res, "loan", loan.ID)
}

// DeactivateLoan marks a loan inactive.
func (s *SQLiteStorage) DeactivateLoan(ctx context.Context, userID, id string) error {
	return s.deactivate(ctx, "loans", "loan", userID, id)
}

// CreateIncomeSource inserts an income source.
func (s *SQLiteStorage) CreateIncomeSource(ctx context.Context, src *model.IncomeSource) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: income source", ErrNilParameter)
	}
	if err := validateUserScope(ctx, src.UserID); err != nil {
		return err
	}
	if err := validateString(src.Name, "name"); err != nil {
		return err
	}
	if src.MonthlyAmount < 0 {
		return common.Validationf("monthly amount must not be negative")
	}
	if src.Kind == "" {
		src.Kind = "other"
	}
	s.stamp(&src.ID, &src.CreatedAt)
	src.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO income_sources (id, user_id, name, kind, monthly_amount, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, src.ID, src.UserID, src.Name, src.Kind, src.MonthlyAmount, utc(src.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert income source: %w", err)
	}
	return nil
}

// ListIncomeSources returns the user's income sources, newest first.
func (s *SQLiteStorage) ListIncomeSources(ctx context.Context, userID string, activeOnly bool) ([]model.IncomeSource, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, kind, monthly_amount, active, created_at
		FROM income_sources
		WHERE user_id = ?`+activeClause(activeOnly)+`
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query income sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.IncomeSource
	for rows.Next() {
		var src model.IncomeSource
		if err := rows.Scan(&src.ID, &src.UserID, &src.Name, &src.Kind, &src.MonthlyAmount,
			&src.Active, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan income source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// UpdateIncomeSource writes the editable income source fields.
func (s *SQLiteStorage) UpdateIncomeSource(ctx context.Context, src *model.IncomeSource) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: income source", ErrNilParameter)
	}
	if err := validateUserScope(ctx, src.UserID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE income_sources SET name = ?, kind = ?, monthly_amount = ?
		WHERE user_id = ? AND id = ? AND active = 1
	`, src.Name, src.Kind, src.MonthlyAmount, src.UserID, src.ID)
	if err != nil {
		return fmt.Errorf("failed to update income source: %w", err)
	}
	return requireAffected(res, "income source", src.ID)
}

// DeactivateIncomeSource marks an income source inactive.
func (s *SQLiteStorage) DeactivateIncomeSource(ctx context.Context, userID, id string) error {
	return s.deactivate(ctx, "income_sources", "income source", userID, id)
}

// CreateGoal inserts a savings goal.
func (s *SQLiteStorage) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if err := validateUserScope(ctx, goal.UserID); err != nil {
		return err
	}
	if err := validateString(goal.Name, "name"); err != nil {
		return err
	}
	if goal.TargetAmount < 0 || goal.CurrentAmount < 0 {
		return common.Validationf("goal amounts must not be negative")
	}
	s.stamp(&goal.ID, &goal.CreatedAt)
	goal.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, name, account_id, target_amount, current_amount,
			last_milestone, deadline, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, goal.ID, goal.UserID, goal.Name, goal.AccountID, goal.TargetAmount, goal.CurrentAmount,
		goal.LastMilestone, nullTime(goal.Deadline), utc(goal.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

const goalColumns = `id, user_id, name, account_id, target_amount, current_amount,
	last_milestone, deadline, active, created_at`

// GetGoal returns one of the user's goals.
func (s *SQLiteStorage) GetGoal(ctx context.Context, userID, id string) (*model.Goal, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND id = ?`, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: goal %s", common.ErrNotFound, id)
	}
	return g, err
}

// ListGoals returns the user's goals, oldest first.
func (s *SQLiteStorage) ListGoals(ctx context.Context, userID string, activeOnly bool) ([]model.Goal, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE user_id = ?`+activeClause(activeOnly)+`
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// UpdateGoal writes the editable goal fields, including progress and the
// last notified milestone.
func (s *SQLiteStorage) UpdateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if err := validateUserScope(ctx, goal.UserID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE goals SET name = ?, account_id = ?, target_amount = ?, current_amount = ?,
			last_milestone = ?, deadline = ?
		WHERE user_id = ? AND id = ? AND active = 1
	`, goal.Name, goal.AccountID, goal.TargetAmount, goal.CurrentAmount, goal.LastMilestone,
		nullTime(goal.Deadline), goal.UserID, goal.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return requireAffected(res, "goal", goal.ID)
}

// DeactivateGoal marks a goal inactive.
func (s *SQLiteStorage) DeactivateGoal(ctx context.Context, userID, id string) error {
	return s.deactivate(ctx, "goals", "goal", userID, id)
}

func scanGoal(row rowScanner) (*model.Goal, error) {
	var g model.Goal
	var deadline sql.NullTime
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.AccountID, &g.TargetAmount, &g.CurrentAmount,
		&g.LastMilestone, &deadline, &g.Active, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}
	if deadline.Valid {
		d := deadline.Time
		g.Deadline = &d
	}
	return &g, nil
}

// CreateConsolidationRequest inserts a request in pending_documents.
func (s *SQLiteStorage) CreateConsolidationRequest(ctx context.Context, req *model.ConsolidationRequest) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if req == nil {
		return fmt.Errorf("%w: consolidation request", ErrNilParameter)
	}
	if err := validateUserScope(ctx, req.UserID); err != nil {
		return err
	}
	if len(req.LoanIDs) == 0 {
		return common.Validationf("at least one loan is required")
	}
	s.stamp(&req.ID, &req.CreatedAt)
	req.UpdatedAt = req.CreatedAt
	req.Status = model.ConsolidationPendingDocuments
	req.Active = true

	loanIDs, err := json.Marshal(req.LoanIDs)
	if err != nil {
		return fmt.Errorf("failed to encode loan ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO consolidation_requests (id, user_id, status, notes, loan_ids, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, req.ID, req.UserID, req.Status, req.Notes, string(loanIDs), utc(req.CreatedAt), utc(req.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert consolidation request: %w", err)
	}
	return nil
}

const consolidationColumns = `id, user_id, status, notes, loan_ids, active, created_at, updated_at`

// GetConsolidationRequest returns one of the user's requests.
func (s *SQLiteStorage) GetConsolidationRequest(ctx context.Context, userID, id string) (*model.ConsolidationRequest, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	return s.getConsolidationTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getConsolidationTx(ctx context.Context, q queryable, userID, id string) (*model.ConsolidationRequest, error) {
	r, err := scanConsolidation(q.QueryRowContext(ctx,
		`SELECT `+consolidationColumns+` FROM consolidation_requests WHERE user_id = ? AND id = ?`, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: consolidation request %s", common.ErrNotFound, id)
	}
	return r, err
}

// ListConsolidationRequests returns the user's requests, newest first.
func (s *SQLiteStorage) ListConsolidationRequests(ctx context.Context, userID string) ([]model.ConsolidationRequest, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+consolidationColumns+` FROM consolidation_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query consolidation requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ConsolidationRequest
	for rows.Next() {
		r, err := scanConsolidation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateConsolidationStatus advances a request along its status machine.
func (s *SQLiteStorage) UpdateConsolidationStatus(ctx context.Context, userID, id string, status model.ConsolidationStatus) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if !status.Valid() {
		return common.Validationf("unknown consolidation status %q", status)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getConsolidationTx(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", common.ErrInvalidTransition, current.Status, status)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE consolidation_requests SET status = ?, active = ?, updated_at = ?
			WHERE user_id = ? AND id = ?
		`, status, !status.Terminal(), utc(s.now()), userID, id)
		if err != nil {
			return fmt.Errorf("failed to update consolidation request: %w", err)
		}
		return nil
	})
}

func scanConsolidation(row rowScanner) (*model.ConsolidationRequest, error) {
	var r model.ConsolidationRequest
	var loanIDs string
	err := row.Scan(&r.ID, &r.UserID, &r.Status, &r.Notes, &loanIDs, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan consolidation request: %w", err)
	}
	if err := json.Unmarshal([]byte(loanIDs), &r.LoanIDs); err != nil {
		return nil, fmt.Errorf("failed to decode loan ids: %w", err)
	}
	return &r, nil
}

// SaveBudget upserts the user's budget for a category. An empty category is
// the overall monthly budget, which is mirrored onto the user profile.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if err := validateUserScope(ctx, budget.UserID); err != nil {
		return err
	}
	if budget.Amount < 0 {
		return common.Validationf("budget must not be negative")
	}
	if budget.UpdatedAt.IsZero() {
		budget.UpdatedAt = s.now()
	}
	budget.Category = strings.TrimSpace(budget.Category)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (user_id, category, amount, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, category) DO UPDATE SET
				amount = excluded.amount,
				updated_at = excluded.updated_at
		`, budget.UserID, budget.Category, budget.Amount, utc(budget.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save budget: %w", err)
		}
		if budget.Category != "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE users SET monthly_budget = ?, updated_at = ? WHERE id = ?`,
			budget.Amount, utc(budget.UpdatedAt), budget.UserID)
		if err != nil {
			return fmt.Errorf("failed to update user budget: %w", err)
		}
		return nil
	})
}

// ListBudgets returns the user's budgets, overall first.
func (s *SQLiteStorage) ListBudgets(ctx context.Context, userID string) ([]model.Budget, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, category, amount, updated_at FROM budgets
		WHERE user_id = ?
		ORDER BY category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Budget
	for rows.Next() {
		var b model.Budget
		if err := rows.Scan(&b.UserID, &b.Category, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// deactivate clears the active flag of a user-owned row in table.
func (s *SQLiteStorage) deactivate(ctx context.Context, table, entity, userID, id string) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	// #nosec G201 - table is one of a fixed set of internal names
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET active = 0 WHERE user_id = ? AND id = ? AND active = 1`, table), userID, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s: %w", entity, err)
	}
	return requireAffected(res, entity, id)
}

// stamp fills a missing ID and creation time.
func (s *SQLiteStorage) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = s.now()
	}
}

func activeClause(activeOnly bool) string {
	if activeOnly {
		return " AND active = 1"
	}
	return ""
}

func zeroAsNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return utc(t)
}
