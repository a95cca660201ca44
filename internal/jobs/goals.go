package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/plaid"
)

// GoalStore reads and updates savings goals.
type GoalStore interface {
	ListGoals(ctx context.Context, userID string, activeOnly bool) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, goal *model.Goal) error
}

// SavingsSync copies linked account balances into goal progress.
type SavingsSync struct {
	store    GoalStore
	balances plaid.BalanceSource
	logger   *slog.Logger
}

// NewSavingsSync creates the savings job.
func NewSavingsSync(store GoalStore, balances plaid.BalanceSource) *SavingsSync {
	return &SavingsSync{
		store:    store,
		balances: balances,
		logger:   slog.Default().With("component", "jobs", "job", NameSavingsSync),
	}
}

// Name implements Job.
func (s *SavingsSync) Name() string { return NameSavingsSync }

// RunUser implements Job. Users without a linked bank are skipped.
func (s *SavingsSync) RunUser(ctx context.Context, user model.User) (int, error) {
	if user.PlaidToken == "" || s.balances == nil {
		return 0, nil
	}

	goals, err := s.store.ListGoals(ctx, user.ID, true)
	if err != nil {
		return 0, err
	}
	linked := false
	for _, g := range goals {
		if g.AccountID != "" {
			linked = true
			break
		}
	}
	if !linked {
		return 0, nil
	}

	balances, err := s.balances.GetBalances(ctx, user.PlaidToken)
	if err != nil {
		return 0, err
	}
	byAccount := make(map[string]float64, len(balances))
	for _, b := range balances {
		byAccount[b.AccountID] = b.Current
	}

	updated := 0
	for i := range goals {
		g := &goals[i]
		current, ok := byAccount[g.AccountID]
		if g.AccountID == "" || !ok {
			continue
		}
		current = math.Round(current*100) / 100
		if current == g.CurrentAmount {
			continue
		}
		g.CurrentAmount = current
		if err := s.store.UpdateGoal(ctx, g); err != nil {
			return updated, err
		}
		updated++
	}
	if updated > 0 {
		s.logger.Debug("Goals synced", "user_id", user.ID, "updated", updated)
	}
	return updated, nil
}

// Milestones notifies users whose goals crossed 25, 50, 75 or 100 percent
// since the last notification.
type Milestones struct {
	store    GoalStore
	notifier Notifier
	logger   *slog.Logger
}

// NewMilestones creates the milestone job.
func NewMilestones(store GoalStore, notifier Notifier) *Milestones {
	return &Milestones{
		store:    store,
		notifier: notifier,
		logger:   slog.Default().With("component", "jobs", "job", NameMilestones),
	}
}

// Name implements Job.
func (m *Milestones) Name() string { return NameMilestones }

// RunUser implements Job. Only the highest newly crossed milestone is sent;
// the goal records it after a successful delivery.
func (m *Milestones) RunUser(ctx context.Context, user model.User) (int, error) {
	goals, err := m.store.ListGoals(ctx, user.ID, true)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range goals {
		g := &goals[i]
		reached := ReachedMilestone(g)
		if reached <= g.LastMilestone {
			continue
		}

		action := model.Action{Kind: model.ActionMilestone, Text: g.Name, Count: reached}
		if err := m.notifier.Notify(ctx, user.ID, action); err != nil {
			return sent, err
		}
		g.LastMilestone = reached
		if err := m.store.UpdateGoal(ctx, g); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// ReachedMilestone returns the highest milestone the goal's progress has
// reached, or 0.
func ReachedMilestone(g *model.Goal) int {
	progress := g.Progress()
	reached := 0
	for _, m := range model.GoalMilestones {
		if progress >= float64(m) {
			reached = m
		}
	}
	return reached
}
