// Package testutil provides shared fixtures for tests that need a real
// database.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/storage"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// TestDB is a migrated in-memory database with fixture helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. Cleanup is registered
// with t.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	user := db.MustCreateUser("972501234567")
//	db.MustAddTransactions(user.ID, testutil.Expense("netflix", 49.90, jan3))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// TestDBOptions configures SetupTestDBWithOptions.
type TestDBOptions struct {
	CustomSetup func(context.Context, *storage.SQLiteStorage) error
	Phones      []string
}

// SetupTestDBWithOptions creates a test database, seeds a user per phone
// and runs CustomSetup.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	db := SetupTestDB(t)
	for _, phone := range opts.Phones {
		db.MustCreateUser(phone)
	}
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(context.Background(), db.Storage); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}
	return db
}

// MustCreateUser inserts a user in the reflection phase.
func (db *TestDB) MustCreateUser(phone string) *model.User {
	db.t.Helper()
	u := &model.User{Phone: phone, Name: "user " + phone}
	if err := db.Storage.CreateUser(context.Background(), u); err != nil {
		db.t.Fatalf("failed to create user %s: %v", phone, err)
	}
	return u
}

// TxnFixture describes a fixture transaction.
type TxnFixture struct {
	Date      time.Time
	Vendor    string
	Category  string // non-empty confirms the transaction
	Direction model.Direction
	Amount    float64
}

// Expense is a proposed expense fixture.
func Expense(rawVendor string, amount float64, date time.Time) TxnFixture {
	return TxnFixture{Vendor: rawVendor, Amount: amount, Date: date, Direction: model.DirectionExpense}
}

// Confirmed is an expense fixture already confirmed under category.
func Confirmed(rawVendor, category string, amount float64, date time.Time) TxnFixture {
	s := Expense(rawVendor, amount, date)
	s.Category = category
	return s
}

// MustAddTransactions stores transactions for userID and returns them.
func (db *TestDB) MustAddTransactions(userID string, fixtures ...TxnFixture) []model.Transaction {
	db.t.Helper()

	txns := make([]model.Transaction, len(fixtures))
	for i, s := range fixtures {
		txn := model.Transaction{
			ID:               uuid.NewString(),
			UserID:           userID,
			Date:             s.Date,
			Vendor:           s.Vendor,
			NormalizedVendor: vendor.Normalize(s.Vendor),
			Amount:           s.Amount,
			Direction:        s.Direction,
			Status:           model.StatusProposed,
			Source:           model.SourceManual,
		}
		if s.Category != "" {
			txn.Status = model.StatusConfirmed
			txn.Category = s.Category
		}
		txn.Hash = txn.GenerateHash()
		txns[i] = txn
	}

	inserted, err := db.Storage.SaveTransactions(context.Background(), txns)
	if err != nil {
		db.t.Fatalf("failed to save transactions: %v", err)
	}
	if len(inserted) != len(txns) {
		db.t.Fatalf("expected %d inserted transactions, got %d", len(txns), len(inserted))
	}
	return inserted
}

// MustSavePattern stores a vendor rule.
func (db *TestDB) MustSavePattern(userID, normalizedVendor, category string, confidence int) {
	db.t.Helper()
	err := db.Storage.SaveVendorPattern(context.Background(), &model.VendorPattern{
		UserID:            userID,
		Vendor:            normalizedVendor,
		Category:          category,
		Confidence:        confidence,
		ConfirmationCount: 1,
	})
	if err != nil {
		db.t.Fatalf("failed to save pattern %s: %v", normalizedVendor, err)
	}
}

// MustSetPhase moves a user forward to phase.
func (db *TestDB) MustSetPhase(userID string, phase model.Phase) {
	db.t.Helper()
	if err := db.Storage.UpdateUserPhase(context.Background(), userID, phase); err != nil {
		db.t.Fatalf("failed to set phase: %v", err)
	}
}
