package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
)

func incoming(v string, amount float64, d int) model.Transaction {
	return model.Transaction{
		Vendor: v,
		Amount: amount,
		Date:   time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC),
		Source: model.SourceOFX,
	}
}

func TestClassifyIncomingTiers(t *testing.T) {
	store := &fakeStore{}
	learner := newFakeLearner(
		model.VendorPattern{Vendor: "netflix", Category: "מנויים", Confidence: 95},
		model.VendorPattern{Vendor: "סופר פארם", Category: "בריאות", Confidence: 80},
		model.VendorPattern{Vendor: "wolt", Category: "מסעדות", Confidence: 40},
	)
	c := NewClassifier(store, learner, config.DefaultPolicy())

	res, err := c.ClassifyIncoming(context.Background(), "u1", []model.Transaction{
		incoming("NETFLIX.COM", 49.90, 1),
		incoming("SUPER-PHARM 12", 35, 2),
		incoming("SUPER-PHARM 14", 60, 3),
		incoming("Wolt", 80, 4),
		incoming("חנות חדשה", -20, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Received)
	assert.Equal(t, 5, res.Saved)
	assert.Equal(t, 1, res.AutoClassified)
	require.Len(t, res.Auto, 1)
	auto := res.Auto[0]
	assert.Equal(t, "netflix", auto.Vendor)
	assert.Equal(t, "מנויים", auto.Category)
	assert.Equal(t, 95, auto.Confidence)
	assert.Len(t, auto.TransactionIDs, 1)

	action := auto.Action()
	assert.Equal(t, model.ActionAutoClassified, action.Kind)
	assert.Equal(t, "netflix", action.Vendor)
	assert.Equal(t, "מנויים", action.Category)
	assert.Equal(t, 1, action.Count)

	require.Len(t, res.Questions, 3)

	assert.Equal(t, "סופר פארם", res.Questions[0].Vendor)
	assert.Equal(t, learning.TierPropose, res.Questions[0].Tier)
	assert.Equal(t, "בריאות", res.Questions[0].SuggestedCategory)
	assert.Len(t, res.Questions[0].TransactionIDs, 2)

	for _, q := range res.Questions[1:] {
		assert.Equal(t, learning.TierAsk, q.Tier)
		assert.Empty(t, q.SuggestedCategory)
	}

	for _, txn := range store.txns {
		assert.Equal(t, "u1", txn.UserID)
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.Hash)
		assert.Positive(t, txn.Amount)
		switch txn.NormalizedVendor {
		case "netflix":
			assert.Equal(t, model.StatusConfirmed, txn.Status)
			assert.Equal(t, "מנויים", txn.Category)
		case "סופר פארם":
			assert.Equal(t, model.StatusProposed, txn.Status)
			assert.Equal(t, "בריאות", txn.Category)
		default:
			assert.Equal(t, model.StatusProposed, txn.Status)
			assert.Empty(t, txn.Category)
		}
	}
	assert.Empty(t, learner.confirmed, "auto-classification leaves confidence alone")
}

func TestIncomingResultMerge(t *testing.T) {
	total := &IncomingResult{}
	total.Merge(&IncomingResult{
		Received:       2,
		Saved:          2,
		AutoClassified: 1,
		Auto:           []AutoClassification{{Vendor: "netflix", Category: "מנויים", TransactionIDs: []string{"a"}, Total: 49.9}},
		Questions:      []Question{{Vendor: "wolt"}},
	})
	total.Merge(&IncomingResult{
		Received:       3,
		Saved:          2,
		Duplicates:     1,
		AutoClassified: 2,
		Auto: []AutoClassification{
			{Vendor: "netflix", Category: "מנויים", TransactionIDs: []string{"b"}, Total: 49.9},
			{Vendor: "פז", Category: "דלק", TransactionIDs: []string{"c"}, Total: 200},
		},
	})

	assert.Equal(t, 5, total.Received)
	assert.Equal(t, 4, total.Saved)
	assert.Equal(t, 1, total.Duplicates)
	assert.Equal(t, 3, total.AutoClassified)
	assert.Len(t, total.Questions, 1)
	require.Len(t, total.Auto, 2)
	assert.Equal(t, []string{"a", "b"}, total.Auto[0].TransactionIDs)
	assert.InDelta(t, 99.8, total.Auto[0].Total, 0.001)
	assert.Equal(t, 2, total.Auto[0].Action().Count)
	assert.Equal(t, "פז", total.Auto[1].Vendor)
}

func TestClassifyIncomingSkipsDuplicates(t *testing.T) {
	store := &fakeStore{}
	c := NewClassifier(store, newFakeLearner(), config.DefaultPolicy())
	batch := []model.Transaction{incoming("wolt", 80, 4)}

	_, err := c.ClassifyIncoming(context.Background(), "u1", batch)
	require.NoError(t, err)
	res, err := c.ClassifyIncoming(context.Background(), "u1", batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Saved)
	assert.Empty(t, res.Questions)
	assert.Len(t, store.txns, 1)
}

func TestClassifyIncomingIncomeIsNotAsked(t *testing.T) {
	store := &fakeStore{}
	c := NewClassifier(store, newFakeLearner(), config.DefaultPolicy())
	salary := incoming("Employer Ltd", 12000, 10)
	salary.Direction = model.DirectionIncome

	res, err := c.ClassifyIncoming(context.Background(), "u1", []model.Transaction{salary})
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
	assert.Equal(t, model.StatusProposed, store.txns[0].Status)
}

func TestClassifyIncomingValidation(t *testing.T) {
	c := NewClassifier(&fakeStore{}, newFakeLearner(), config.DefaultPolicy())
	ctx := context.Background()

	_, err := c.ClassifyIncoming(ctx, "", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = c.ClassifyIncoming(ctx, "u1", []model.Transaction{incoming("wolt", 0, 1)})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = c.ClassifyIncoming(ctx, "u1", []model.Transaction{incoming("***", 10, 1)})
	assert.ErrorIs(t, err, common.ErrValidation)

	res, err := c.ClassifyIncoming(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Received)
}
