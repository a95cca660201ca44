package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/learning"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pending transactions",
	}
	cmd.AddCommand(classifyBulkCmd())
	return cmd
}

func classifyBulkCmd() *cobra.Command {
	var (
		phone    string
		accept   bool
		vendor   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Propose one category per vendor for pending transactions",
		Long: `Group a user's pending transactions by vendor and propose a category for
each group from the learned rules or the category catalog. Nothing
changes unless --accept or --vendor is given.`,
		Example: `  # Review proposals
  phi classify bulk --phone 0501234567

  # Accept every proposal that has a category
  phi classify bulk --phone 0501234567 --accept

  # Assign one vendor group yourself
  phi classify bulk --phone 0501234567 --vendor paz --category תחבורה`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if (vendor == "") != (category == "") {
				return fmt.Errorf("--vendor and --category go together")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			user, err := lookupUser(ctx, store, phone)
			if err != nil {
				return err
			}

			policy := config.LoadPolicy(viper.GetViper())
			bulk := engine.NewBulkClassifier(store, learning.New(store, policy), policy)

			if vendor != "" {
				n, err := bulk.ApplyGroup(ctx, user.ID, vendor, category)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Confirmed %d transactions of %s as %s", n, vendor, category)))
				return nil
			}

			proposals, err := bulk.Propose(ctx, user.ID)
			if err != nil {
				return err
			}
			if len(proposals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No vendor groups waiting for review."))
				return nil
			}

			rows := make([][]string, 0, len(proposals))
			for _, p := range proposals {
				suggested := p.Category
				if suggested == "" {
					suggested = "?"
				}
				rows = append(rows, []string{
					p.Vendor,
					strconv.Itoa(p.Count),
					cli.Money(p.Total),
					suggested,
					string(p.Source),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"VENDOR", "COUNT", "TOTAL", "CATEGORY", "SOURCE"}, rows))

			if !accept {
				return nil
			}
			return applyProposals(cmd, bulk, user.ID, proposals)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "user's WhatsApp number (required)")
	cmd.Flags().BoolVar(&accept, "accept", false, "apply every proposal that has a category")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor group to assign")
	cmd.Flags().StringVar(&category, "category", "", "category for --vendor")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func applyProposals(cmd *cobra.Command, bulk *engine.BulkClassifier, userID string, proposals []engine.GroupProposal) error {
	ctx := cmd.Context()
	var applied, skipped int
	for _, p := range proposals {
		if p.Category == "" {
			skipped++
			continue
		}
		n, err := bulk.ApplyGroup(ctx, userID, p.Vendor, p.Category)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Failed to apply proposal", "vendor", p.Vendor, "error", err)
			skipped++
			continue
		}
		applied += n
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Confirmed %d transactions", applied)))
	if skipped > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%d vendor groups left for the user to answer", skipped)))
	}
	return nil
}
