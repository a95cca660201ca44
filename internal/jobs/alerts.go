package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/model"
)

// AlertStore persists alerts with key dedup.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *model.Alert) (bool, error)
}

// SpikeSource finds this month's category spikes.
type SpikeSource interface {
	Spikes(ctx context.Context, userID string, now time.Time) ([]behavior.Insight, error)
}

// AlertScan turns this month's spending spikes into alerts. A spike is
// alerted once per category and month.
type AlertScan struct {
	store    AlertStore
	spikes   SpikeSource
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewAlertScan creates the alert job.
func NewAlertScan(store AlertStore, spikes SpikeSource, notifier Notifier) *AlertScan {
	return &AlertScan{
		store:    store,
		spikes:   spikes,
		notifier: notifier,
		logger:   slog.Default().With("component", "jobs", "job", NameAlerts),
		now:      time.Now,
	}
}

// Name implements Job.
func (a *AlertScan) Name() string { return NameAlerts }

// RunUser implements Job.
func (a *AlertScan) RunUser(ctx context.Context, user model.User) (int, error) {
	insights, err := a.spikes.Spikes(ctx, user.ID, a.now())
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, in := range insights {
		alert := &model.Alert{
			UserID:    user.ID,
			Key:       fmt.Sprintf("%s:%s:%s", in.Kind, in.Period, in.Category),
			Kind:      string(in.Kind),
			Message:   in.Description,
			Magnitude: in.Magnitude,
		}
		inserted, err := a.store.SaveAlert(ctx, alert)
		if err != nil {
			return sent, err
		}
		if !inserted {
			continue
		}

		action := model.Action{
			Kind:     model.ActionAlert,
			Category: in.Category,
			Lines:    []string{in.Description},
		}
		if err := a.notifier.Notify(ctx, user.ID, action); err != nil {
			a.logger.Warn("Alert stored but not delivered", "user_id", user.ID, "key", alert.Key, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
