package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/tax"
)

func taxCmd() *cobra.Command {
	var gross, points string

	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Estimate monthly income tax and net salary",
		Example: `  phi tax --gross 15000
  phi tax --gross 15000 --points 2.75`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := decimal.NewFromString(gross)
			if err != nil {
				return fmt.Errorf("invalid --gross %q", gross)
			}
			p, err := decimal.NewFromString(points)
			if err != nil {
				return fmt.Errorf("invalid --points %q", points)
			}

			res, err := tax.Table2024().Calculate(tax.Input{Gross: g, CreditPoints: p})
			if err != nil {
				return err
			}

			hundred := decimal.NewFromInt(100)
			rows := [][]string{
				{"Gross", "₪" + res.Gross.StringFixed(2)},
				{"Tax before credits", "₪" + res.TaxBeforeCredits.StringFixed(2)},
				{"Credit points", "-₪" + res.Credits.StringFixed(2)},
				{"Income tax", "₪" + res.Tax.StringFixed(2)},
				{"Net", "₪" + res.Net.StringFixed(2)},
				{"Marginal rate", res.MarginalRate.Mul(hundred).StringFixed(0) + "%"},
				{"Effective rate", res.EffectiveRate.Mul(hundred).StringFixed(1) + "%"},
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("Monthly income tax %d", res.Year)))
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"", "AMOUNT"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&gross, "gross", "", "monthly gross salary in shekels (required)")
	cmd.Flags().StringVar(&points, "points", tax.DefaultCreditPoints.String(), "credit points")
	_ = cmd.MarkFlagRequired("gross")
	return cmd
}
