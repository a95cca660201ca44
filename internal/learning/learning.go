// Package learning keeps each user's vendor to category rules and the
// confidence the bot has in them.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// Tier is how much the bot trusts a rule when a new transaction arrives.
type Tier string

// Confidence tiers.
const (
	TierAuto    Tier = "auto"    // classify silently
	TierPropose Tier = "propose" // suggest and ask for confirmation
	TierAsk     Tier = "ask"     // ask with no suggestion
)

// TierOf maps a confidence to its tier. Lower bounds are inclusive.
func TierOf(confidence int, p config.Policy) Tier {
	switch {
	case confidence >= p.AutoClassifyThreshold:
		return TierAuto
	case confidence >= p.ProposeThreshold:
		return TierPropose
	default:
		return TierAsk
	}
}

// Suggestion is a stored rule as seen by the classifier.
type Suggestion struct {
	Vendor     string
	Category   string
	Tier       Tier
	Confidence int
}

// Engine applies confirmations and corrections to vendor rules.
type Engine struct {
	store  service.PatternStore
	logger *slog.Logger
	now    func() time.Time
	policy config.Policy
}

// New creates a learning engine over store.
func New(store service.PatternStore, policy config.Policy) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		logger: slog.Default().With("component", "learning"),
		now:    time.Now,
	}
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

// Suggest returns the stored rule for vendorName, or nil when there is none.
func (e *Engine) Suggest(ctx context.Context, userID, vendorName string) (*Suggestion, error) {
	v := vendor.Normalize(vendorName)
	if v == "" {
		return nil, nil
	}

	p, err := e.load(ctx, userID, v)
	if err != nil || p == nil {
		return nil, err
	}

	return &Suggestion{
		Vendor:     p.Vendor,
		Category:   p.Category,
		Confidence: p.Confidence,
		Tier:       TierOf(p.Confidence, e.policy),
	}, nil
}

// Confirm records that the user accepted category for vendorName. A rule for
// the same category gains ConfirmIncrement up to MaxConfidence; a missing
// rule, or one for another category, starts over at InitialConfidence.
func (e *Engine) Confirm(ctx context.Context, userID, vendorName, category string) (*model.VendorPattern, error) {
	v, err := e.validate(userID, vendorName, category)
	if err != nil {
		return nil, err
	}

	p, err := e.load(ctx, userID, v)
	if err != nil {
		return nil, err
	}

	switch {
	case p == nil:
		p = &model.VendorPattern{
			UserID:            userID,
			Vendor:            v,
			Category:          category,
			Confidence:        e.policy.InitialConfidence,
			ConfirmationCount: 1,
		}
	case p.Category != category:
		e.logger.Info("Confirmed category differs from rule, starting over",
			"user_id", userID, "vendor", v, "old", p.Category, "new", category)
		p.Category = category
		p.Confidence = e.policy.InitialConfidence
		p.ConfirmationCount = 1
	default:
		p.Confidence += e.policy.ConfirmIncrement
		if p.Confidence > e.policy.MaxConfidence {
			p.Confidence = e.policy.MaxConfidence
		}
		p.ConfirmationCount++
	}

	return p, e.save(ctx, p)
}

// Correct replaces the rule's category and resets its confidence to
// CorrectionConfidence. It affects future classification only; transactions
// already confirmed keep their category. The previous category is returned,
// empty when the rule did not exist.
func (e *Engine) Correct(ctx context.Context, userID, vendorName, category string) (*model.VendorPattern, string, error) {
	v, err := e.validate(userID, vendorName, category)
	if err != nil {
		return nil, "", err
	}

	p, err := e.load(ctx, userID, v)
	if err != nil {
		return nil, "", err
	}

	previous := ""
	if p == nil {
		p = &model.VendorPattern{UserID: userID, Vendor: v}
	} else {
		previous = p.Category
	}
	p.Category = category
	p.Confidence = e.policy.CorrectionConfidence

	if err := e.save(ctx, p); err != nil {
		return nil, "", err
	}

	e.logger.Info("Vendor rule corrected",
		"user_id", userID, "vendor", v, "previous", previous, "category", category)
	return p, previous, nil
}

// Forget deletes the rule for vendorName. It returns common.ErrNotFound when
// the user has no such rule.
func (e *Engine) Forget(ctx context.Context, userID, vendorName string) error {
	v := vendor.Normalize(vendorName)
	if userID == "" || v == "" {
		return common.Validationf("user and vendor are required")
	}

	if err := e.store.DeleteVendorPattern(ctx, userID, v); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("rule for %q: %w", v, common.ErrNotFound)
		}
		return common.Upstream("delete vendor pattern", err)
	}
	return nil
}

// List returns all of the user's rules.
func (e *Engine) List(ctx context.Context, userID string) ([]model.VendorPattern, error) {
	patterns, err := e.store.ListVendorPatterns(ctx, userID)
	if err != nil {
		return nil, common.Upstream("list vendor patterns", err)
	}
	for i := range patterns {
		e.checkBounds(&patterns[i])
	}
	return patterns, nil
}

func (e *Engine) validate(userID, vendorName, category string) (string, error) {
	if userID == "" {
		return "", common.Validationf("user id is required")
	}
	v := vendor.Normalize(vendorName)
	if v == "" {
		return "", common.Validationf("vendor %q is empty after normalization", vendorName)
	}
	if !catalog.Exists(category) {
		return "", common.Validationf("unknown category %q", category)
	}
	return v, nil
}

func (e *Engine) load(ctx context.Context, userID, v string) (*model.VendorPattern, error) {
	p, err := e.store.GetVendorPattern(ctx, userID, v)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Upstream("get vendor pattern", err)
	}
	e.checkBounds(p)
	return p, nil
}

func (e *Engine) save(ctx context.Context, p *model.VendorPattern) error {
	e.checkBounds(p)
	p.LastUpdated = e.now()
	if err := e.store.SaveVendorPattern(ctx, p); err != nil {
		return common.Upstream("save vendor pattern", err)
	}
	return nil
}

// checkBounds clamps an out-of-range confidence. Reaching it is a defect.
func (e *Engine) checkBounds(p *model.VendorPattern) {
	before := p.Confidence
	if p.Clamp(e.policy.MaxConfidence) {
		e.logger.Error("Vendor pattern confidence out of range",
			"error", common.ErrLogic,
			"user_id", p.UserID,
			"vendor", p.Vendor,
			"confidence", before)
	}
}
