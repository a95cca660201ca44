package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransaction_GenerateHash(t *testing.T) {
	a := makeTransaction("u1", "Netflix.com", 49.90, date(2024, 1, 3))
	b := makeTransaction("u1", "NETFLIX COM", 49.90, date(2024, 1, 3))
	c := makeTransaction("u2", "Netflix.com", 49.90, date(2024, 1, 3))

	if a.Hash != b.Hash {
		t.Error("same normalized vendor, date and amount should hash equal")
	}
	if a.Hash == c.Hash {
		t.Error("hashes must be scoped per user")
	}
}

func TestSQLiteStorage_TransactionDeduplication(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000010")

	first := makeTransaction(user.ID, "שופרסל", 100, date(2024, 1, 10))
	inserted, err := store.SaveTransactions(ctx, []model.Transaction{first})
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	dup := first
	dup.ID = "other-id"
	second := makeTransaction(user.ID, "שופרסל", 55, date(2024, 1, 11))

	inserted, err = store.SaveTransactions(ctx, []model.Transaction{dup, second})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, second.ID, inserted[0].ID)

	all, err := store.GetTransactions(ctx, user.ID, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStorage_SaveTransactionsValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bad := makeTransaction("u1", "x", 10, date(2024, 1, 1))
	bad.Hash = ""
	_, err := store.SaveTransactions(ctx, []model.Transaction{bad})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.SaveTransactions(ctx, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	inserted, err := store.SaveTransactions(ctx, []model.Transaction{})
	require.NoError(t, err)
	assert.Empty(t, inserted)
}

func TestSQLiteStorage_TransactionFiltering(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000011")
	other := createTestUser(t, store, "972500000012")

	income := makeTransaction(user.ID, "משכורת", 12000, date(2024, 2, 1))
	income.Direction = model.DirectionIncome
	income.Hash = income.GenerateHash()

	txns := []model.Transaction{
		makeTransaction(user.ID, "netflix", 49.9, date(2024, 1, 3)),
		makeTransaction(user.ID, "netflix", 50.1, date(2024, 2, 3)),
		makeTransaction(user.ID, "wolt", 80, date(2024, 2, 14)),
		income,
		makeTransaction(other.ID, "netflix", 49.9, date(2024, 1, 3)),
	}
	_, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)

	feb, mar := date(2024, 2, 1), date(2024, 3, 1)
	tests := []struct {
		name   string
		filter service.TransactionFilter
		want   int
	}{
		{"all of user", service.TransactionFilter{}, 4},
		{"date range inclusive start exclusive end", service.TransactionFilter{StartDate: &feb, EndDate: &mar}, 3},
		{"end excludes first of month", service.TransactionFilter{EndDate: &feb}, 1},
		{"vendor", service.TransactionFilter{Vendor: "netflix"}, 2},
		{"direction", service.TransactionFilter{Direction: model.DirectionIncome}, 1},
		{"status", service.TransactionFilter{Status: model.StatusConfirmed}, 0},
		{"limit", service.TransactionFilter{Limit: 2}, 2},
		{"limit with offset", service.TransactionFilter{Limit: 2, Offset: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetTransactions(ctx, user.ID, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, txn := range got {
				assert.Equal(t, user.ID, txn.UserID)
			}
		})
	}

	_, err = store.GetTransactions(ctx, user.ID, service.TransactionFilter{Status: "bogus"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSQLiteStorage_TransactionStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000013")

	a := makeTransaction(user.ID, "סופר פארם", 65, date(2024, 3, 2))
	b := makeTransaction(user.ID, "רב קו", 30, date(2024, 3, 3))
	_, err := store.SaveTransactions(ctx, []model.Transaction{a, b})
	require.NoError(t, err)

	require.NoError(t, store.SetProposedCategory(ctx, user.ID, a.ID, "בריאות"))
	got, err := store.GetTransactionByID(ctx, user.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProposed, got.Status)
	assert.Equal(t, "בריאות", got.Category)

	require.NoError(t, store.SetTransactionStatus(ctx, user.ID, a.ID, model.StatusConfirmed, "מזון"))
	got, err = store.GetTransactionByID(ctx, user.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, "מזון", got.Category)

	err = store.SetTransactionStatus(ctx, user.ID, a.ID, model.StatusRejected, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	err = store.SetProposedCategory(ctx, user.ID, a.ID, "פנאי")
	assert.ErrorIs(t, err, common.ErrNotFound, "only proposed rows take suggestions")

	err = store.SetTransactionStatus(ctx, user.ID, b.ID, model.StatusConfirmed, "")
	assert.ErrorIs(t, err, common.ErrValidation, "confirmation needs a category")

	require.NoError(t, store.SetTransactionStatus(ctx, user.ID, b.ID, model.StatusRejected, ""))

	err = store.SetTransactionStatus(ctx, "someone-else", b.ID, model.StatusConfirmed, "מזון")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSQLiteStorage_ConfirmVendorTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000014")

	var txns []model.Transaction
	for d := 1; d <= 5; d++ {
		txns = append(txns, makeTransaction(user.ID, "שופרסל", float64(100+d), date(2024, 4, d)))
	}
	txns = append(txns, makeTransaction(user.ID, "wolt", 70, date(2024, 4, 2)))
	_, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)
	require.NoError(t, store.SetTransactionStatus(ctx, user.ID, txns[0].ID, model.StatusRejected, ""))

	n, err := store.ConfirmVendorTransactions(ctx, user.ID, "שופרסל", "מזון")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "rejected rows stay rejected")

	n, err = store.ConfirmVendorTransactions(ctx, user.ID, "שופרסל", "מזון")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorage_Aggregates(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "972500000015")

	food1 := makeTransaction(user.ID, "שופרסל", 300, date(2024, 1, 5))
	food2 := makeTransaction(user.ID, "שופרסל", 200, date(2024, 2, 5))
	fun := makeTransaction(user.ID, "סינמה סיטי", 90, date(2024, 2, 9))
	pending := makeTransaction(user.ID, "wolt", 999, date(2024, 2, 10))
	salary := makeTransaction(user.ID, "משכורת", 10000, date(2024, 2, 1))
	salary.Direction = model.DirectionIncome
	salary.Hash = salary.GenerateHash()

	_, err := store.SaveTransactions(ctx, []model.Transaction{food1, food2, fun, pending, salary})
	require.NoError(t, err)
	for _, c := range []struct {
		id, category string
	}{{food1.ID, "מזון"}, {food2.ID, "מזון"}, {fun.ID, "בילויים"}, {salary.ID, "משכורת"}} {
		require.NoError(t, store.SetTransactionStatus(ctx, user.ID, c.id, model.StatusConfirmed, c.category))
	}

	summary, err := store.GetCategorySummary(ctx, user.ID, date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"מזון": 500, "בילויים": 90}, summary)

	totals, err := store.GetMonthlyTotals(ctx, user.ID, date(2024, 1, 1), date(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, []service.MonthlyTotal{
		{Month: "2024-01", Direction: model.DirectionExpense, Amount: 300, Count: 1},
		{Month: "2024-02", Direction: model.DirectionExpense, Amount: 290, Count: 2},
		{Month: "2024-02", Direction: model.DirectionIncome, Amount: 10000, Count: 1},
	}, totals)

	_, err = store.GetCategorySummary(ctx, user.ID, date(2024, 3, 1), date(2024, 1, 1))
	assert.ErrorIs(t, err, common.ErrValidation)
}
