package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

const transactionColumns = `id, user_id, hash, date, vendor, normalized_vendor, category,
	amount, direction, status, source, created_at`

// SaveTransactions inserts transactions in one database transaction. Rows
// whose (user, hash) already exists are skipped; the inserted rows are
// returned in input order.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if transactions == nil {
		return nil, fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return nil, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}

	var inserted []model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.CreatedAt.IsZero() {
				txn.CreatedAt = s.now()
			}
			res, err := stmt.ExecContext(ctx,
				txn.ID, txn.UserID, txn.Hash, utc(txn.Date), txn.Vendor, txn.NormalizedVendor,
				txn.Category, txn.Amount, txn.Direction, txn.Status, txn.Source, utc(txn.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n > 0 {
				inserted = append(inserted, txn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// GetTransactionByID returns one of the user's transactions.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getTransactionTx(ctx context.Context, q queryable, userID, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return txn, err
}

// GetTransactions returns the user's transactions matching filter, ordered
// by date then ID.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}

	where := []string{"user_id = ?"}
	args := []any{userID}
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, nullTime(filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "date < ?")
		args = append(args, nullTime(filter.EndDate))
	}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
		}
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, filter.Direction)
	}
	if filter.Vendor != "" {
		where = append(where, "normalized_vendor = ?")
		args = append(args, filter.Vendor)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	return out, rows.Err()
}

// SetTransactionStatus moves a proposed transaction to confirmed or rejected.
// Any other move returns common.ErrInvalidTransition.
func (s *SQLiteStorage) SetTransactionStatus(ctx context.Context, userID, id string, status model.TransactionStatus, category string) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == model.StatusConfirmed {
		if err := validateString(category, "category"); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTransactionTx(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", common.ErrInvalidTransition, current.Status, status)
		}
		if category == "" {
			category = current.Category
		}
		_, err = tx.ExecContext(ctx, `UPDATE transactions SET status = ?, category = ? WHERE user_id = ? AND id = ?`,
			status, category, userID, id)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		return nil
	})
}

// SetProposedCategory records a suggested category on a proposed transaction.
func (s *SQLiteStorage) SetProposedCategory(ctx context.Context, userID, id, category string) error {
	if err := validateUserScope(ctx, userID); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET category = ?
		WHERE user_id = ? AND id = ? AND status = ?
	`, category, userID, id, model.StatusProposed)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireAffected(res, "proposed transaction", id)
}

// ConfirmVendorTransactions confirms every proposed transaction of a vendor
// under category and returns how many changed.
func (s *SQLiteStorage) ConfirmVendorTransactions(ctx context.Context, userID, vendor, category string) (int, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return 0, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return 0, err
	}
	if err := validateString(category, "category"); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET status = ?, category = ?
		WHERE user_id = ? AND normalized_vendor = ? AND status = ?
	`, model.StatusConfirmed, category, userID, vendor, model.StatusProposed)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm vendor transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// GetCategorySummary sums confirmed expenses per category in [start, end).
func (s *SQLiteStorage) GetCategorySummary(ctx context.Context, userID string, start, end time.Time) (map[string]float64, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount)
		FROM transactions
		WHERE user_id = ? AND status = ? AND direction = ? AND date >= ? AND date < ?
		GROUP BY category
	`, userID, model.StatusConfirmed, model.DirectionExpense, utc(start), utc(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make(map[string]float64)
	for rows.Next() {
		var category string
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summary[category] = total
	}
	return summary, rows.Err()
}

// GetMonthlyTotals sums confirmed amounts per month and direction in [start, end).
func (s *SQLiteStorage) GetMonthlyTotals(ctx context.Context, userID string, start, end time.Time) ([]service.MonthlyTotal, error) {
	if err := validateUserScope(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}

	// Stored timestamps start with YYYY-MM-DD, so the first seven characters
	// are the month.
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, direction, SUM(amount), COUNT(*)
		FROM transactions
		WHERE user_id = ? AND status = ? AND date >= ? AND date < ?
		GROUP BY month, direction
		ORDER BY month, direction
	`, userID, model.StatusConfirmed, utc(start), utc(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.MonthlyTotal
	for rows.Next() {
		var t service.MonthlyTotal
		if err := rows.Scan(&t.Month, &t.Direction, &t.Amount, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Hash, &t.Date, &t.Vendor, &t.NormalizedVendor, &t.Category,
		&t.Amount, &t.Direction, &t.Status, &t.Source, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}
