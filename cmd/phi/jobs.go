package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/jobs"
)

// jobAliases maps short CLI names to registered job names.
var jobAliases = map[string]string{
	"savings": jobs.NameSavingsSync,
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run periodic jobs by hand",
		Long: `The server runs these from its cron endpoints. Running one here does
the same work once for every user; each job recomputes from stored data,
so a repeated run is harmless.`,
	}
	cmd.AddCommand(jobsRunCmd())
	return cmd
}

func jobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <alerts|savings|milestones>",
		Short:     "Run one job for every user",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.NameAlerts, "savings", jobs.NameMilestones},
		Example: `  phi jobs run alerts
  phi jobs run savings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if alias, ok := jobAliases[name]; ok {
				name = alias
			}

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := interrupts.HandleInterrupts(cmd.Context(), "Users already processed keep their results.")

			a, err := newApp(ctx, nil, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			total, err := a.runner.CountUsers(ctx)
			if err != nil {
				return err
			}
			bar := cli.NewProgressBar(cmd.ErrOrStderr(), total, "Running "+name)
			a.runner.OnProgress(func() { _ = bar.Add(1) })

			summary, err := a.runner.RunByName(ctx, name)
			_ = bar.Finish()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.PhiIcon+" "+summary.Job, fmt.Sprintf(
				"Users:     %d\nSucceeded: %d\nFailed:    %d\nItems:     %d\nDuration:  %s",
				summary.Users, summary.Succeeded, summary.Failed, summary.Items,
				summary.Duration.Round(time.Millisecond))))

			if len(summary.Failures) > 0 {
				ids := make([]string, 0, len(summary.Failures))
				for id := range summary.Failures {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					rows = append(rows, []string{id, summary.Failures[id]})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"USER", "ERROR"}, rows))
				return fmt.Errorf("%d of %d users failed: %s", summary.Failed, summary.Users, strings.Join(ids, ", "))
			}
			return nil
		},
	}
}
