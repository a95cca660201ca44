// Package jobs holds the periodic per-user tasks: spending alerts, savings
// balance sync and goal milestones. Every job recomputes from stored data,
// so running it twice is harmless.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Job names as used by the cron endpoints and the CLI.
const (
	NameAlerts      = "alerts"
	NameSavingsSync = "savings-sync"
	NameMilestones  = "milestones"
)

// Job processes one user. It returns how many items it produced (alerts,
// goals updated, milestones sent).
type Job interface {
	Name() string
	RunUser(ctx context.Context, user model.User) (int, error)
}

// Notifier delivers an action to a user.
type Notifier interface {
	Notify(ctx context.Context, userID string, action model.Action) error
}

// UserLister lists every account.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// RunSummary reports one run.
type RunSummary struct {
	Failures  map[string]string `json:"failures,omitempty"` // user id → error
	Job       string            `json:"job"`
	Duration  time.Duration     `json:"duration"`
	Users     int               `json:"users"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     int               `json:"items"`
}

// Runner fans a job out over all users.
type Runner struct {
	users    UserLister
	jobs     map[string]Job
	logger   *slog.Logger
	progress func()
	limit    int
}

// NewRunner creates a runner processing at most limit users at a time.
func NewRunner(users UserLister, limit int, jobs ...Job) *Runner {
	if limit <= 0 {
		limit = 4
	}
	r := &Runner{
		users:  users,
		limit:  limit,
		jobs:   make(map[string]Job),
		logger: slog.Default().With("component", "jobs"),
	}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// OnProgress sets a callback invoked after each user finishes.
func (r *Runner) OnProgress(fn func()) {
	r.progress = fn
}

// Names lists the registered jobs.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunByName runs a registered job. An unknown name is ErrNotFound.
func (r *Runner) RunByName(ctx context.Context, name string) (*RunSummary, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: job %q", common.ErrNotFound, name)
	}
	return r.Run(ctx, job)
}

// CountUsers returns how many users a run will visit.
func (r *Runner) CountUsers(ctx context.Context) (int, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

// Run executes job for every user. A failing user is recorded in the
// summary and does not stop the others; only cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, job Job) (*RunSummary, error) {
	start := time.Now()
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return nil, common.Upstream("list users", err)
	}

	summary := &RunSummary{Job: job.Name(), Users: len(users)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)

	for _, u := range users {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			n, err := job.RunUser(gctx, u)

			mu.Lock()
			defer mu.Unlock()
			if r.progress != nil {
				r.progress()
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				r.logger.Error("Job failed for user", "job", job.Name(), "user_id", u.ID, "error", err)
				summary.Failed++
				if summary.Failures == nil {
					summary.Failures = make(map[string]string)
				}
				summary.Failures[u.ID] = err.Error()
				return nil
			}
			summary.Succeeded++
			summary.Items += n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("job %s interrupted: %w", job.Name(), err)
	}

	summary.Duration = time.Since(start)
	r.logger.Info("Job finished",
		"job", job.Name(),
		"users", summary.Users,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"items", summary.Items,
		"duration", summary.Duration)
	return summary, nil
}
