package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/service"
)

// TransactionReader is the slice of storage the engine reads from.
type TransactionReader interface {
	GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error)
}

// Engine runs the detectors over stored transactions. It never writes.
type Engine struct {
	store  TransactionReader
	logger *slog.Logger
	policy config.Policy
}

// NewEngine creates a behavior engine.
func NewEngine(store TransactionReader, policy config.Policy) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		logger: slog.Default().With("component", "behavior"),
	}
}

// Window returns the lookback range ending with the month of now.
func (e *Engine) Window(now time.Time) (time.Time, time.Time) {
	end := monthOf(now) + 1
	months := e.policy.LookbackMonths
	if months < 1 {
		months = 1
	}
	return (end - month(months)).start(), end.start()
}

func (e *Engine) load(ctx context.Context, userID string, start *time.Time, end *time.Time) ([]model.Transaction, error) {
	txns, err := e.store.GetTransactions(ctx, userID, service.TransactionFilter{
		Status:    model.StatusConfirmed,
		Direction: model.DirectionExpense,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return nil, common.Upstream("load transactions", err)
	}
	return txns, nil
}

// DetectRecurring returns recurring charges within the lookback window.
func (e *Engine) DetectRecurring(ctx context.Context, userID string, now time.Time) ([]RecurringCandidate, error) {
	start, end := e.Window(now)
	txns, err := e.load(ctx, userID, &start, &end)
	if err != nil {
		return nil, err
	}
	return DetectRecurring(txns, e.policy), nil
}

// Spikes returns the category spikes of the month of now.
func (e *Engine) Spikes(ctx context.Context, userID string, now time.Time) ([]Insight, error) {
	start, end := e.Window(now)
	txns, err := e.load(ctx, userID, &start, &end)
	if err != nil {
		return nil, err
	}
	return Spikes(txns, now, e.policy), nil
}

// Analyze runs all five detectors. Seasonality looks at the full history; the
// rest use the lookback window. With no spending at all it returns a single
// insufficient_data insight.
func (e *Engine) Analyze(ctx context.Context, userID string, now time.Time) ([]Insight, error) {
	all, err := e.load(ctx, userID, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []Insight{{
			Kind:        KindInsufficientData,
			Description: "עדיין אין מספיק תנועות מאושרות כדי לנתח את ההתנהגות הפיננסית שלך",
		}}, nil
	}

	start, end := e.Window(now)
	window := make([]model.Transaction, 0, len(all))
	for _, t := range all {
		if !t.Date.Before(start) && t.Date.Before(end) {
			window = append(window, t)
		}
	}

	var insights []Insight
	insights = append(insights, RecurringInsights(DetectRecurring(window, e.policy))...)
	insights = append(insights, Spikes(window, now, e.policy)...)
	insights = append(insights, Trends(window, start, end.AddDate(0, 0, -1), e.policy)...)
	insights = append(insights, DayPatterns(window, e.policy)...)
	insights = append(insights, Seasonality(all, e.policy)...)

	e.logger.Debug("Behavior analysis complete",
		"user_id", userID,
		"transactions", len(all),
		"window", len(window),
		"insights", len(insights))
	return insights, nil
}
