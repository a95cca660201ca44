package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Idosegev23/finhealer/internal/cli"
	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import a user's bank statements from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from the bank.
New rows are classified right away: vendors with a confident rule are
confirmed and the rest wait for the user's answer.`,
		Example: `  # Import one statement
  phi import-ofx --phone 0501234567 ~/Downloads/leumi_2024_03.ofx

  # Import a folder and ask the user about new vendors
  phi import-ofx --phone 0501234567 --notify ~/Downloads/*.qfx

  # Preview without saving
  phi import-ofx --phone 0501234567 --dry-run statement.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("phone", "", "user's WhatsApp number (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "parse and summarize without saving")
	cmd.Flags().Bool("notify", false, "tell the user about auto-classified vendors and send the first pending question")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	phone, _ := cmd.Flags().GetString("phone")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	notify, _ := cmd.Flags().GetBool("notify")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import interrupted; files already imported are saved.")

	if dryRun {
		return previewOFX(ctx, cmd, files)
	}

	a, err := newApp(ctx, nil, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := lookupUser(ctx, a.store, phone)
	if err != nil {
		return err
	}

	importer := ofx.NewImporter(a.classifier)
	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(files), "Importing statements")

	var total engine.IncomingResult
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		result, err := importFile(ctx, importer, user.ID, path)
		if err != nil {
			if interrupts.WasInterrupted() {
				break
			}
			_ = bar.Clear()
			common.LogError(err, "Failed to import file", common.Fields{"file": path})
			_ = bar.Add(1)
			continue
		}
		total.Merge(result)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	common.LogInfo("Statement import finished", common.Fields{
		"user_id":         user.ID,
		"files":           len(files),
		"saved":           total.Saved,
		"duplicates":      total.Duplicates,
		"auto_classified": total.AutoClassified,
	})

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Import summary", fmt.Sprintf(
		"Received:        %d\nSaved:           %d\nDuplicates:      %d\nAuto-classified: %d\nNeed an answer:  %d",
		total.Received, total.Saved, total.Duplicates, total.AutoClassified, len(total.Questions))))

	if interrupts.WasInterrupted() {
		return context.Canceled
	}
	if notify && len(total.Auto) > 0 {
		sent, err := a.conversation.ReportAutoClassified(ctx, user.ID, total.Auto)
		if err != nil {
			return fmt.Errorf("failed to report auto-classified vendors: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reported %d auto-classified vendors to %s", sent, user.Phone)))
	}
	if notify && len(total.Questions) > 0 {
		asked, err := a.conversation.AskQuestions(ctx, user.ID, total.Questions)
		if err != nil {
			return fmt.Errorf("failed to ask user: %w", err)
		}
		if asked {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Sent the first question to " + user.Phone))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("User is mid-conversation; questions stay queued"))
		}
	}
	return nil
}

func importFile(ctx context.Context, importer *ofx.Importer, userID, path string) (*engine.IncomingResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return importer.Import(ctx, userID, f)
}

func previewOFX(ctx context.Context, cmd *cobra.Command, files []string) error {
	parser := ofx.NewParser()
	rows := make([][]string, 0, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		txns, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		var income, expenses float64
		for _, t := range txns {
			if t.Direction == model.DirectionIncome {
				income += t.Amount
			} else {
				expenses += t.Amount
			}
		}
		rows = append(rows, []string{filepath.Base(path), fmt.Sprint(len(txns)), cli.Money(income), cli.Money(expenses)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Dry run, nothing saved"))
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"FILE", "TRANSACTIONS", "INCOME", "EXPENSES"}, rows))
	return nil
}
