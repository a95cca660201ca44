package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/sheets"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export confirmed transactions to Google Sheets",
		Long: `Write a user's confirmed transactions, a category summary and a
monthly cash flow to a Google Sheet. Authenticate with a service account
(sheets.service_account_path) or an OAuth client; run with --login once to
store an OAuth token.`,
		Example: `  # Authorize once
  phi export --login

  # Export the first quarter
  phi export --phone 0501234567 --from 2024-01 --to 2024-03`,
		RunE: runExport,
	}

	cmd.Flags().String("phone", "", "user's WhatsApp number")
	cmd.Flags().String("from", "", "first month, YYYY-MM (default: this month)")
	cmd.Flags().String("to", "", "last month, YYYY-MM (default: --from)")
	cmd.Flags().String("spreadsheet", "", "spreadsheet id (overrides sheets.spreadsheet_id)")
	cmd.Flags().Bool("login", false, "authorize with Google and save the OAuth token")
	cmd.Flags().String("callback-addr", "localhost:8085", "local address for the OAuth callback")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.LoadSheetsConfig(viper.GetViper())
	if id, _ := cmd.Flags().GetString("spreadsheet"); id != "" {
		cfg.SpreadsheetID = id
	}

	if login, _ := cmd.Flags().GetBool("login"); login {
		addr, _ := cmd.Flags().GetString("callback-addr")
		if _, err := sheets.Login(ctx, cfg, addr, func(url string) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Open this URL to authorize Phi:"))
			fmt.Fprintln(cmd.OutOrStdout(), url)
		}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Saved Google token to " + cfg.TokenFile))
		return nil
	}

	phone, _ := cmd.Flags().GetString("phone")
	start, end, err := monthRange(cmd)
	if err != nil {
		return err
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

	writer, err := sheets.NewWriter(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := sheets.NewExporter(store, writer).Export(ctx, user.ID, start, end)
	if err != nil {
		if errors.Is(err, common.ErrNoTransactions) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No confirmed transactions in that range"))
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Exported", fmt.Sprintf(
		"Transactions: %d\nIncome:       %s\nExpenses:     %s\nSheet:        https://docs.google.com/spreadsheets/d/%s",
		len(report.Transactions),
		report.TotalIncome.StringFixed(2),
		report.TotalExpenses.StringFixed(2),
		writer.SpreadsheetID())))
	return nil
}

// monthRange turns --from/--to months into [first day of from, first day after to).
func monthRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if from != "" {
		t, err := time.Parse("2006-01", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q, want YYYY-MM", from)
		}
		start = t
	}
	last := start
	if to != "" {
		t, err := time.Parse("2006-01", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q, want YYYY-MM", to)
		}
		last = t
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, last.AddDate(0, 1, 0), nil
}
