package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/behavior"
	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
)

// withBehavior opens storage and a behavior engine for the --phone user.
func withBehavior(cmd *cobra.Command, fn func(ctx context.Context, user *model.User, engine *behavior.Engine) error) error {
	ctx := cmd.Context()
	phone, _ := cmd.Flags().GetString("phone")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := lookupUser(ctx, store, phone)
	if err != nil {
		return err
	}
	return fn(ctx, user, behavior.NewEngine(store, config.LoadPolicy(viper.GetViper())))
}

// asOf parses --at, defaulting to now.
func asOf(cmd *cobra.Command) (time.Time, error) {
	at, _ := cmd.Flags().GetString("at")
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, at, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q, want YYYY-MM-DD", at)
	}
	return t, nil
}

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Show charges that repeat month after month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := asOf(cmd)
			if err != nil {
				return err
			}
			return withBehavior(cmd, func(ctx context.Context, user *model.User, engine *behavior.Engine) error {
				found, err := engine.DetectRecurring(ctx, user.ID, now)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No recurring charges found."))
					return nil
				}

				rows := make([][]string, 0, len(found))
				for _, r := range found {
					rows = append(rows, []string{
						r.Vendor,
						cli.Money(r.Amount),
						strconv.Itoa(r.MonthsSeen),
						r.FirstMonth + " – " + r.LastMonth,
						cli.Money(r.Total),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Recurring charges"))
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"VENDOR", "MONTHLY", "MONTHS", "PERIOD", "TOTAL"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().String("phone", "", "user's WhatsApp number (required)")
	cmd.Flags().String("at", "", "analyze as of this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func insightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show spending spikes, trends and patterns",
		Long: `Run every behavior detector over the lookback window: recurring
charges, category spikes against the recent average, monthly trends,
dominant weekdays and seasonal categories.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := asOf(cmd)
			if err != nil {
				return err
			}
			return withBehavior(cmd, func(ctx context.Context, user *model.User, engine *behavior.Engine) error {
				insights, err := engine.Analyze(ctx, user.ID, now)
				if err != nil {
					return err
				}
				if len(insights) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Not enough confirmed history for insights yet."))
					return nil
				}

				start, end := engine.Window(now)
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("%s Insights %s – %s",
					cli.ChartIcon, start.Format("2006-01"), end.AddDate(0, 0, -1).Format("2006-01"))))

				rows := make([][]string, 0, len(insights))
				for _, in := range insights {
					subject := in.Category
					if in.Vendor != "" {
						subject = in.Vendor
					}
					rows = append(rows, []string{string(in.Kind), subject, in.Period, in.Description})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"KIND", "SUBJECT", "PERIOD", "DETAIL"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().String("phone", "", "user's WhatsApp number (required)")
	cmd.Flags().String("at", "", "analyze as of this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}
