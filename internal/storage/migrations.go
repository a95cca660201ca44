package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Users, transactions, vendor patterns and conversation state",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					phone TEXT UNIQUE NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					phase TEXT NOT NULL DEFAULT 'reflection',
					reflection TEXT NOT NULL DEFAULT '',
					plaid_token TEXT NOT NULL DEFAULT '',
					monthly_income REAL NOT NULL DEFAULT 0,
					monthly_expenses REAL NOT NULL DEFAULT 0,
					monthly_budget REAL NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					hash TEXT NOT NULL,
					date DATETIME NOT NULL,
					vendor TEXT NOT NULL,
					normalized_vendor TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL CHECK (amount >= 0),
					direction TEXT NOT NULL CHECK (direction IN ('income', 'expense')),
					status TEXT NOT NULL CHECK (status IN ('proposed', 'confirmed', 'rejected')),
					source TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					UNIQUE (user_id, hash)
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_user_vendor ON transactions(user_id, normalized_vendor)`,
				`CREATE INDEX idx_transactions_user_status ON transactions(user_id, status)`,

				`CREATE TABLE IF NOT EXISTS vendor_patterns (
					user_id TEXT NOT NULL REFERENCES users(id),
					vendor TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence INTEGER NOT NULL CHECK (confidence BETWEEN 0 AND 100),
					confirmation_count INTEGER NOT NULL DEFAULT 0,
					last_updated DATETIME NOT NULL,
					PRIMARY KEY (user_id, vendor)
				)`,

				`CREATE TABLE IF NOT EXISTS conversation_state (
					user_id TEXT PRIMARY KEY REFERENCES users(id),
					pending TEXT,
					retries INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Loans, income sources, goals, consolidation requests and budgets",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS loans (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					lender TEXT NOT NULL,
					principal REAL NOT NULL DEFAULT 0,
					balance REAL NOT NULL DEFAULT 0,
					monthly_payment REAL NOT NULL DEFAULT 0,
					interest_rate REAL NOT NULL DEFAULT 0,
					start_date DATETIME,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_loans_user ON loans(user_id, active)`,

				`CREATE TABLE IF NOT EXISTS income_sources (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					name TEXT NOT NULL,
					kind TEXT NOT NULL DEFAULT 'other',
					monthly_amount REAL NOT NULL DEFAULT 0,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_income_sources_user ON income_sources(user_id, active)`,

				`CREATE TABLE IF NOT EXISTS goals (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					name TEXT NOT NULL,
					account_id TEXT NOT NULL DEFAULT '',
					target_amount REAL NOT NULL DEFAULT 0,
					current_amount REAL NOT NULL DEFAULT 0,
					last_milestone INTEGER NOT NULL DEFAULT 0,
					deadline DATETIME,
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_goals_user ON goals(user_id, active)`,

				`CREATE TABLE IF NOT EXISTS consolidation_requests (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					status TEXT NOT NULL,
					notes TEXT NOT NULL DEFAULT '',
					loan_ids TEXT NOT NULL DEFAULT '[]',
					active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_consolidations_user ON consolidation_requests(user_id)`,

				`CREATE TABLE IF NOT EXISTS budgets (
					user_id TEXT NOT NULL REFERENCES users(id),
					category TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL CHECK (amount >= 0),
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, category)
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Alerts with per-user dedup keys",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS alerts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id),
					key TEXT NOT NULL,
					kind TEXT NOT NULL,
					message TEXT NOT NULL,
					magnitude REAL NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					UNIQUE (user_id, key)
				)`,
				`CREATE INDEX idx_alerts_user_created ON alerts(user_id, created_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
