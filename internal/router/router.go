// Package router decides, without any generative model, what the bot does
// with an inbound WhatsApp message. It returns an action descriptor and the
// next conversation state; it never renders text and never stores state.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
)

// State is the per-user conversation state. It is passed into Dispatch and
// the updated copy comes back in the Result.
type State struct {
	Pending *model.PendingAction
	Phase   model.Phase
	Retries int
}

// Inbound is one message from a resolved user.
type Inbound struct {
	UserID string
	Phone  string
	Text   string
}

// Result is the decided action and the state to persist.
type Result struct {
	Action model.Action
	State  State
}

// Learner is the slice of the learning engine the router drives.
type Learner interface {
	Confirm(ctx context.Context, userID, vendor, category string) (*model.VendorPattern, error)
	Correct(ctx context.Context, userID, vendor, category string) (*model.VendorPattern, string, error)
	Forget(ctx context.Context, userID, vendor string) error
	List(ctx context.Context, userID string) ([]model.VendorPattern, error)
}

// TransactionConfirmer applies an answered question to the transactions it
// was about.
type TransactionConfirmer interface {
	SetTransactionStatus(ctx context.Context, userID, id string, status model.TransactionStatus, category string) error
	ConfirmVendorTransactions(ctx context.Context, userID, vendor, category string) (int, error)
}

// Recorder stores what the user tells the bot during onboarding.
type Recorder interface {
	SaveReflection(ctx context.Context, userID, text string) error
	SaveBudget(ctx context.Context, budget *model.Budget) error
	CreateGoal(ctx context.Context, goal *model.Goal) error
}

// InsightSource produces the behavior summary.
type InsightSource interface {
	Analyze(ctx context.Context, userID string, now time.Time) ([]behavior.Insight, error)
}

// Router is the rule-based dispatcher.
type Router struct {
	learner  Learner
	txns     TransactionConfirmer
	recorder Recorder
	insights InsightSource
	logger   *slog.Logger
	now      func() time.Time
	policy   config.Policy
}

// New creates a router.
func New(learner Learner, txns TransactionConfirmer, recorder Recorder, insights InsightSource, policy config.Policy) *Router {
	return &Router{
		learner:  learner,
		txns:     txns,
		recorder: recorder,
		insights: insights,
		policy:   policy,
		logger:   slog.Default().With("component", "router"),
		now:      time.Now,
	}
}

// Dispatch decides the next action. Explicit commands win over a pending
// question, a pending question wins over the phase, and anything left over
// gets a clarification. Side effects are applied before returning. An error
// is returned only when a side effect fails upstream.
func (r *Router) Dispatch(ctx context.Context, state State, in Inbound) (Result, error) {
	if !state.Phase.Valid() {
		state.Phase = model.PhaseReflection
	}
	text := cleanText(in.Text)

	if cmd, ok := parseCommand(text); ok {
		r.logger.Debug("Command recognized", "user_id", in.UserID, "command", cmd.kind)
		return r.runCommand(ctx, state, in.UserID, cmd)
	}

	if state.Pending != nil {
		return r.answerPending(ctx, state, in.UserID, text)
	}

	return r.handlePhase(ctx, state, in.UserID, text)
}

// Ask turns a classification question into a pending action. It reports
// false when another question is already pending.
func Ask(state State, vendor, suggested string, transactionIDs []string) (Result, bool) {
	if state.Pending != nil {
		return Result{State: state}, false
	}

	p := &model.PendingAction{
		Vendor:         vendor,
		TransactionIDs: transactionIDs,
	}
	if suggested != "" {
		p.Kind = model.PendingCategoryConfirmation
		p.SuggestedCategory = suggested
	} else {
		p.Kind = model.PendingCategoryChoice
		p.Options = choiceOptions()
	}
	state.Pending = p
	state.Retries = 0
	return Result{Action: askAction(p), State: state}, true
}

func clarify(state State) Result {
	return Result{Action: model.Action{Kind: model.ActionClarify, Phase: state.Phase}, State: state}
}

// cleanText trims, collapses inner whitespace and drops trailing punctuation.
func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, ".!?,;:")
}
