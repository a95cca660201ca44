package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// createTestStorage opens a migrated file-backed store.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// createTestUser inserts a user with the given phone.
func createTestUser(t *testing.T, store *SQLiteStorage, phone string) *model.User {
	t.Helper()
	u := &model.User{Phone: phone, Name: "Test " + phone}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

// makeTransaction builds a valid proposed expense.
func makeTransaction(userID, rawVendor string, amount float64, date time.Time) model.Transaction {
	txn := model.Transaction{
		ID:               fmt.Sprintf("%s-%s-%.2f-%s", userID, rawVendor, amount, date.Format("20060102")),
		UserID:           userID,
		Date:             date,
		Vendor:           rawVendor,
		NormalizedVendor: vendor.Normalize(rawVendor),
		Amount:           amount,
		Direction:        model.DirectionExpense,
		Status:           model.StatusProposed,
		Source:           model.SourceManual,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	v, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != ExpectedSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", v, ExpectedSchemaVersion)
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store1, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store1.Migrate(ctx); err != nil {
		t.Fatalf("Initial migration failed: %v", err)
	}
	user := createTestUser(t, store1, "972500000001")
	_ = store1.Close()

	// Running migrations again must be a no-op.
	store2, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store2.Close() }()

	if err := store2.Migrate(ctx); err != nil {
		t.Fatalf("Repeated migration failed: %v", err)
	}

	txn := makeTransaction(user.ID, "שופרסל דיל", 120, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if _, err := store2.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
		t.Errorf("Database not functional after migration: %v", err)
	}
}

func TestSQLiteStorage_ConcurrentAccess(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000002")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			txn := makeTransaction(user.ID, fmt.Sprintf("vendor %c", 'a'+i), float64(i+1)*10, base)
			if _, err := store.SaveTransactions(ctx, []model.Transaction{txn}); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.GetTransactions(ctx, user.ID, service.TransactionFilter{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	all, err := store.GetTransactions(ctx, user.ID, service.TransactionFilter{})
	if err != nil {
		t.Fatalf("GetTransactions() error = %v", err)
	}
	if len(all) != 10 {
		t.Errorf("got %d transactions, want 10", len(all))
	}
}
