// Package engine classifies incoming transactions against the user's learned
// vendor rules and batches pending ones for bulk approval.
package engine

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/learning"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// Question is a vendor the user still has to classify.
type Question struct {
	Vendor            string
	SuggestedCategory string  // empty for TierAsk
	Tier              learning.Tier
	TransactionIDs    []string
	Total             float64
	Confidence        int
}

// AutoClassification is a vendor whose new transactions were confirmed by
// its rule without asking.
type AutoClassification struct {
	Vendor         string
	Category       string
	TransactionIDs []string
	Total          float64
	Confidence     int
}

// Action is the auto_classified descriptor telling the user about it.
func (a AutoClassification) Action() model.Action {
	return model.Action{
		Kind:       model.ActionAutoClassified,
		Vendor:     a.Vendor,
		Category:   a.Category,
		Confidence: a.Confidence,
		Count:      len(a.TransactionIDs),
	}
}

// IncomingResult summarizes one ingestion.
type IncomingResult struct {
	Questions      []Question
	Auto           []AutoClassification
	Received       int
	Saved          int
	Duplicates     int
	AutoClassified int
}

// Merge folds other into r. Auto-classified vendors seen in both are
// combined into one entry.
func (r *IncomingResult) Merge(other *IncomingResult) {
	r.Received += other.Received
	r.Saved += other.Saved
	r.Duplicates += other.Duplicates
	r.AutoClassified += other.AutoClassified
	r.Questions = append(r.Questions, other.Questions...)
	for _, a := range other.Auto {
		i := slices.IndexFunc(r.Auto, func(x AutoClassification) bool { return x.Vendor == a.Vendor })
		if i < 0 {
			a.TransactionIDs = slices.Clone(a.TransactionIDs)
			r.Auto = append(r.Auto, a)
			continue
		}
		r.Auto[i].TransactionIDs = append(r.Auto[i].TransactionIDs, a.TransactionIDs...)
		r.Auto[i].Total += a.Total
		r.Auto[i].Category = a.Category
		r.Auto[i].Confidence = a.Confidence
	}
}

// Classifier decides the initial status of newly ingested transactions.
type Classifier struct {
	store   IncomingStore
	learner Learner
	logger  *slog.Logger
	now     func() time.Time
	policy  config.Policy
}

// NewClassifier creates a classifier for the ingestion path.
func NewClassifier(store IncomingStore, learner Learner, policy config.Policy) *Classifier {
	return &Classifier{
		store:   store,
		learner: learner,
		policy:  policy,
		logger:  slog.Default().With("component", "classifier"),
		now:     time.Now,
	}
}

// ClassifyIncoming stores new transactions for userID. Expenses whose vendor
// rule is in TierAuto are confirmed with the rule's category; TierPropose
// rows stay proposed with the rule's category as a suggestion; TierAsk rows
// stay proposed without one. Income is stored proposed and never asked about.
// Auto-classification does not change the rule's confidence. Duplicates
// (same hash) are skipped.
func (c *Classifier) ClassifyIncoming(ctx context.Context, userID string, txns []model.Transaction) (*IncomingResult, error) {
	if userID == "" {
		return nil, common.Validationf("user id is required")
	}
	result := &IncomingResult{Received: len(txns)}
	if len(txns) == 0 {
		return result, nil
	}

	suggestions := make(map[string]*learning.Suggestion)
	prepared := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if err := c.prepare(userID, &t); err != nil {
			return nil, err
		}

		if t.Direction == model.DirectionExpense {
			s, seen := suggestions[t.NormalizedVendor]
			if !seen {
				var err error
				s, err = c.learner.Suggest(ctx, userID, t.NormalizedVendor)
				if err != nil {
					return nil, err
				}
				suggestions[t.NormalizedVendor] = s
			}
			if s != nil && t.Category == "" {
				switch s.Tier {
				case learning.TierAuto:
					t.Category = s.Category
					t.Status = model.StatusConfirmed
				case learning.TierPropose:
					t.Category = s.Category
				}
			}
		}
		prepared = append(prepared, t)
	}

	inserted, err := c.store.SaveTransactions(ctx, prepared)
	if err != nil {
		return nil, common.Upstream("save transactions", err)
	}
	result.Saved = len(inserted)
	result.Duplicates = len(prepared) - len(inserted)

	byVendor := make(map[string]*Question)
	autoByVendor := make(map[string]*AutoClassification)
	for _, t := range inserted {
		if t.Status == model.StatusConfirmed {
			result.AutoClassified++
			a := autoByVendor[t.NormalizedVendor]
			if a == nil {
				a = &AutoClassification{Vendor: t.NormalizedVendor, Category: t.Category}
				if s := suggestions[t.NormalizedVendor]; s != nil {
					a.Confidence = s.Confidence
				}
				autoByVendor[t.NormalizedVendor] = a
			}
			a.TransactionIDs = append(a.TransactionIDs, t.ID)
			a.Total += t.Amount
			continue
		}
		if t.Direction != model.DirectionExpense {
			continue
		}
		q := byVendor[t.NormalizedVendor]
		if q == nil {
			q = &Question{Vendor: t.NormalizedVendor, Tier: learning.TierAsk}
			if s := suggestions[t.NormalizedVendor]; s != nil && s.Tier == learning.TierPropose {
				q.SuggestedCategory = s.Category
				q.Confidence = s.Confidence
				q.Tier = s.Tier
			}
			byVendor[t.NormalizedVendor] = q
		}
		q.TransactionIDs = append(q.TransactionIDs, t.ID)
		q.Total += t.Amount
	}

	for _, q := range byVendor {
		result.Questions = append(result.Questions, *q)
	}
	sort.Slice(result.Questions, func(i, j int) bool {
		qi, qj := result.Questions[i], result.Questions[j]
		if len(qi.TransactionIDs) != len(qj.TransactionIDs) {
			return len(qi.TransactionIDs) > len(qj.TransactionIDs)
		}
		return qi.Vendor < qj.Vendor
	})

	for _, a := range autoByVendor {
		result.Auto = append(result.Auto, *a)
	}
	sort.Slice(result.Auto, func(i, j int) bool {
		ai, aj := result.Auto[i], result.Auto[j]
		if len(ai.TransactionIDs) != len(aj.TransactionIDs) {
			return len(ai.TransactionIDs) > len(aj.TransactionIDs)
		}
		return ai.Vendor < aj.Vendor
	})

	c.logger.Info("Classified incoming transactions",
		"user_id", userID,
		"received", result.Received,
		"saved", result.Saved,
		"duplicates", result.Duplicates,
		"auto_classified", result.AutoClassified,
		"questions", len(result.Questions))
	return result, nil
}

func (c *Classifier) prepare(userID string, t *model.Transaction) error {
	if t.Amount < 0 {
		t.Amount = -t.Amount
		if t.Direction == "" {
			t.Direction = model.DirectionExpense
		}
	}
	if t.Direction == "" {
		t.Direction = model.DirectionExpense
	}
	if t.Amount == 0 {
		return common.Validationf("transaction %q has no amount", t.Vendor)
	}
	if t.Date.IsZero() {
		return common.Validationf("transaction %q has no date", t.Vendor)
	}
	if t.Source == "" {
		t.Source = model.SourceManual
	}
	if !t.Source.Valid() {
		return common.Validationf("unknown source %q", t.Source)
	}

	t.UserID = userID
	t.NormalizedVendor = vendor.Normalize(t.Vendor)
	if t.NormalizedVendor == "" {
		return common.Validationf("transaction vendor %q is empty after normalization", t.Vendor)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = model.StatusProposed
	t.Hash = t.GenerateHash()
	t.CreatedAt = c.now()
	return nil
}
