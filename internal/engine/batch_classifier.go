package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// ProposalSource tells where a group's category came from.
type ProposalSource string

// Proposal sources, strongest first.
const (
	SourceLearning ProposalSource = "learning"
	SourceCatalog  ProposalSource = "catalog"
	SourceNone     ProposalSource = "none"
)

// GroupProposal is one category proposed for every pending transaction of a vendor.
type GroupProposal struct {
	Vendor       string              `json:"vendor"`
	Category     string              `json:"category,omitempty"`
	Source       ProposalSource      `json:"source"`
	Tier         learning.Tier       `json:"tier,omitempty"`
	Transactions []model.Transaction `json:"-"`
	Total        float64             `json:"total"`
	Confidence   int                 `json:"confidence"`
	Count        int                 `json:"count"`
}

// BulkClassifier proposes one category per vendor group of pending
// transactions and applies the user's approval to the whole group.
type BulkClassifier struct {
	store   BulkStore
	learner Learner
	logger  *slog.Logger
	policy  config.Policy
}

// NewBulkClassifier creates a bulk classifier.
func NewBulkClassifier(store BulkStore, learner Learner, policy config.Policy) *BulkClassifier {
	return &BulkClassifier{
		store:   store,
		learner: learner,
		policy:  policy,
		logger:  slog.Default().With("component", "bulk_classifier"),
	}
}

// Propose groups the user's proposed transactions by normalized vendor and
// returns one proposal for each group of at least BulkMinGroupSize. It does
// not modify anything.
func (b *BulkClassifier) Propose(ctx context.Context, userID string) ([]GroupProposal, error) {
	pending, err := b.store.GetTransactions(ctx, userID, service.TransactionFilter{Status: model.StatusProposed})
	if err != nil {
		return nil, common.Upstream("get proposed transactions", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	groups := groupByVendor(pending)
	proposals := make([]GroupProposal, 0, len(groups))
	for _, v := range sortVendorsByVolume(groups) {
		txns := groups[v]
		if len(txns) < b.policy.BulkMinGroupSize {
			continue
		}

		p := GroupProposal{
			Vendor:       v,
			Source:       SourceNone,
			Transactions: txns,
			Count:        len(txns),
		}
		for _, t := range txns {
			p.Total += t.Amount
		}

		suggestion, err := b.learner.Suggest(ctx, userID, v)
		if err != nil {
			return nil, err
		}
		switch {
		case suggestion != nil:
			p.Category = suggestion.Category
			p.Confidence = suggestion.Confidence
			p.Tier = suggestion.Tier
			p.Source = SourceLearning
		default:
			if c, ok := catalog.MatchKeyword(v); ok {
				p.Category = c.Name
				p.Source = SourceCatalog
			}
		}
		proposals = append(proposals, p)
	}

	b.logger.Debug("Bulk proposals computed",
		"user_id", userID,
		"pending", len(pending),
		"vendors", len(groups),
		"proposals", len(proposals))
	return proposals, nil
}

// ApplyGroup confirms every proposed transaction of vendorName with category
// and records a single confirmation for the vendor. It returns how many
// transactions were confirmed.
func (b *BulkClassifier) ApplyGroup(ctx context.Context, userID, vendorName, category string) (int, error) {
	v := vendor.Normalize(vendorName)
	if v == "" {
		return 0, common.Validationf("vendor is required")
	}
	if !catalog.Exists(category) {
		return 0, common.Validationf("unknown category %q", category)
	}

	n, err := b.store.ConfirmVendorTransactions(ctx, userID, v, category)
	if err != nil {
		return 0, common.Upstream("confirm vendor transactions", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("no proposed transactions for %q: %w", v, common.ErrNotFound)
	}

	if _, err := b.learner.Confirm(ctx, userID, v, category); err != nil {
		return n, err
	}

	b.logger.Info("Applied bulk classification",
		"user_id", userID,
		"vendor", v,
		"category", category,
		"transactions", n)
	return n, nil
}

func groupByVendor(txns []model.Transaction) map[string][]model.Transaction {
	groups := make(map[string][]model.Transaction)
	for _, t := range txns {
		v := t.NormalizedVendor
		if v == "" {
			v = vendor.Normalize(t.Vendor)
		}
		groups[v] = append(groups[v], t)
	}
	return groups
}

// sortVendorsByVolume orders vendors by transaction count, then name.
func sortVendorsByVolume(groups map[string][]model.Transaction) []string {
	vendors := make([]string, 0, len(groups))
	for v := range groups {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool {
		ci, cj := len(groups[vendors[i]]), len(groups[vendors[j]])
		if ci != cj {
			return ci > cj
		}
		return vendors[i] < vendors[j]
	})
	return vendors
}
