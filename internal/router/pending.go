package router

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

var (
	yesAnswers = map[string]bool{"1": true, "כן": true, "yes": true, "y": true, "נכון": true, "אישור": true, "מאשר": true, "מאשרת": true}
	noAnswers  = map[string]bool{"2": true, "לא": true, "no": true, "n": true, "לא נכון": true}
)

// choiceOptions are the categories offered when the user picks one.
func choiceOptions() []string {
	var out []string
	for _, c := range catalog.All() {
		if c.Type == model.CategoryTypeExpense {
			out = append(out, c.Name)
		}
	}
	return out
}

func askAction(p *model.PendingAction) model.Action {
	switch p.Kind {
	case model.PendingCategoryConfirmation:
		return model.Action{
			Kind:              model.ActionAskCategoryConfirmation,
			Vendor:            p.Vendor,
			SuggestedCategory: p.SuggestedCategory,
			Options:           []string{"כן", "לא"},
			Count:             len(p.TransactionIDs),
		}
	default:
		return model.Action{
			Kind:    model.ActionAskCategory,
			Vendor:  p.Vendor,
			Options: p.Options,
			Count:   len(p.TransactionIDs),
		}
	}
}

func (r *Router) answerPending(ctx context.Context, state State, userID, text string) (Result, error) {
	p := state.Pending
	answer := strings.ToLower(text)

	switch p.Kind {
	case model.PendingCategoryConfirmation:
		switch {
		case yesAnswers[answer]:
			return r.resolvePending(ctx, state, userID, p.SuggestedCategory)
		case noAnswers[answer]:
			next := *p
			next.Kind = model.PendingCategoryChoice
			next.Options = choiceOptions()
			state.Pending = &next
			state.Retries = 0
			return Result{Action: askAction(&next), State: state}, nil
		}
		if c, ok := catalog.Find(text); ok {
			return r.resolvePending(ctx, state, userID, c.Name)
		}

	case model.PendingCategoryChoice:
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(p.Options) {
			return r.resolvePending(ctx, state, userID, p.Options[n-1])
		}
		if c, ok := catalog.Find(text); ok {
			return r.resolvePending(ctx, state, userID, c.Name)
		}
	}

	return r.unmatched(state), nil
}

// unmatched re-asks the pending question until the retry budget is spent,
// then drops it and asks the user to clarify.
func (r *Router) unmatched(state State) Result {
	if state.Retries < r.policy.PendingRetryBudget {
		state.Retries++
		return Result{Action: askAction(state.Pending), State: state}
	}

	r.logger.Info("Dropping pending action after unmatched replies",
		"vendor", state.Pending.Vendor,
		"retries", state.Retries)
	state.Pending = nil
	state.Retries = 0
	return clarify(state)
}

func (r *Router) resolvePending(ctx context.Context, state State, userID, category string) (Result, error) {
	p := state.Pending

	pattern, err := r.learner.Confirm(ctx, userID, p.Vendor, category)
	if err != nil {
		return Result{State: state}, err
	}

	confirmed, err := r.confirmTransactions(ctx, userID, p, category)
	if err != nil {
		return Result{State: state}, err
	}

	state.Pending = nil
	state.Retries = 0
	return Result{Action: model.Action{
		Kind:       model.ActionCategoryConfirmed,
		Vendor:     p.Vendor,
		Category:   category,
		Confidence: pattern.Confidence,
		Count:      confirmed,
	}, State: state}, nil
}

// confirmTransactions confirms the transactions the question was about.
// Rows already confirmed or rejected elsewhere are skipped.
func (r *Router) confirmTransactions(ctx context.Context, userID string, p *model.PendingAction, category string) (int, error) {
	if len(p.TransactionIDs) == 0 {
		return r.txns.ConfirmVendorTransactions(ctx, userID, p.Vendor, category)
	}

	n := 0
	for _, id := range p.TransactionIDs {
		err := r.txns.SetTransactionStatus(ctx, userID, id, model.StatusConfirmed, category)
		switch {
		case err == nil:
			n++
		case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrNotFound):
			r.logger.Debug("Skipping transaction no longer pending", "user_id", userID, "transaction_id", id)
		default:
			return n, err
		}
	}
	return n, nil
}
