package engine

import (
	"context"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

type fakeStore struct {
	txns []model.Transaction
}

func (f *fakeStore) GetTransactions(_ context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range f.txns {
		if t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ConfirmVendorTransactions(_ context.Context, userID, vendor, category string) (int, error) {
	n := 0
	for i := range f.txns {
		t := &f.txns[i]
		if t.UserID == userID && t.NormalizedVendor == vendor && t.Status == model.StatusProposed {
			t.Status = model.StatusConfirmed
			t.Category = category
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SaveTransactions(_ context.Context, txns []model.Transaction) ([]model.Transaction, error) {
	seen := make(map[string]bool)
	for _, t := range f.txns {
		seen[t.Hash] = true
	}
	var inserted []model.Transaction
	for _, t := range txns {
		if seen[t.Hash] {
			continue
		}
		seen[t.Hash] = true
		f.txns = append(f.txns, t)
		inserted = append(inserted, t)
	}
	return inserted, nil
}

type fakeLearner struct {
	patterns  map[string]model.VendorPattern
	confirmed []string
}

func newFakeLearner(patterns ...model.VendorPattern) *fakeLearner {
	l := &fakeLearner{patterns: make(map[string]model.VendorPattern)}
	for _, p := range patterns {
		l.patterns[p.Vendor] = p
	}
	return l
}

func (l *fakeLearner) Suggest(_ context.Context, _ string, vendor string) (*learning.Suggestion, error) {
	p, ok := l.patterns[vendor]
	if !ok {
		return nil, nil
	}
	return &learning.Suggestion{
		Vendor:     p.Vendor,
		Category:   p.Category,
		Confidence: p.Confidence,
		Tier:       learning.TierOf(p.Confidence, config.DefaultPolicy()),
	}, nil
}

func (l *fakeLearner) Confirm(_ context.Context, userID, vendor, category string) (*model.VendorPattern, error) {
	if vendor == "" {
		return nil, common.ErrValidation
	}
	l.confirmed = append(l.confirmed, vendor+"="+category)
	p := model.VendorPattern{UserID: userID, Vendor: vendor, Category: category, Confidence: 60}
	l.patterns[vendor] = p
	return &p, nil
}
