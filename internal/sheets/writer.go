package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Tab titles.
const (
	TabTransactions = "תנועות"
	TabCategories   = "קטגוריות"
	TabMonthlyFlow  = "תזרים חודשי"
)

var tabs = []string{TabTransactions, TabCategories, TabMonthlyFlow}

// ReportWriter writes a finished report somewhere.
type ReportWriter interface {
	Write(ctx context.Context, report *Report) error
}

// Writer implements ReportWriter for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  slog.Default().With("component", "sheets"),
	}, nil
}

// SpreadsheetID is the configured sheet, or the one the first Write created.
func (w *Writer) SpreadsheetID() string {
	return w.config.SpreadsheetID
}

// Write replaces the contents of every report tab.
func (w *Writer) Write(ctx context.Context, report *Report) error {
	if report == nil {
		return common.Validationf("report is required")
	}
	w.logger.Info("Starting report export",
		"transactions", len(report.Transactions),
		"start", report.Period.Start.Format("2006-01-02"),
		"end", report.Period.End.Format("2006-01-02"))

	retryOpts := common.RetryOptions{
		Op:           "sheets",
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var ids map[string]int64
	var spreadsheetID string
	err := common.WithRetry(ctx, func() error {
		var err error
		spreadsheetID, ids, err = w.getOrCreateSpreadsheet(ctx)
		return classify(err)
	}, retryOpts)
	if err != nil {
		return common.Upstream("sheets open", err)
	}

	content := map[string][][]any{
		TabTransactions: transactionValues(report),
		TabCategories:   categoryValues(report),
		TabMonthlyFlow:  flowValues(report),
	}
	for _, tab := range tabs {
		values := content[tab]
		err := common.WithRetry(ctx, func() error {
			if err := w.clearTab(ctx, spreadsheetID, tab); err != nil {
				return classify(err)
			}
			return classify(w.writeData(ctx, spreadsheetID, tab, values))
		}, retryOpts)
		if err != nil {
			return common.Upstream("sheets write "+tab, err)
		}
	}

	if w.config.EnableFormatting {
		err := common.WithRetry(ctx, func() error {
			return classify(w.applyFormatting(ctx, spreadsheetID, ids))
		}, retryOpts)
		if err != nil {
			// The data is already written.
			w.logger.Warn("Failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("Report export completed", "spreadsheet_id", spreadsheetID)
	return nil
}

// classify marks Google API errors as retryable or not.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %v", common.ErrRateLimit, err), Retryable: true}
	case gerr.Code >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

// createSheetsService authenticates with a service account or an OAuth
// refresh token.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		token := &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}
		if config.RefreshToken == "" {
			saved, err := LoadToken(config.TokenFile)
			if err != nil {
				return nil, fmt.Errorf("%w: no refresh token and no saved token at %s; run phi export --login",
					common.ErrMissingConfig, config.TokenFile)
			}
			token = saved
		}
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// getOrCreateSpreadsheet opens the configured spreadsheet, adding any
// missing tab, or creates a new one. It returns the sheet id of every tab.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		return w.createSpreadsheet(ctx)
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	ids := make(map[string]int64, len(tabs))
	for _, s := range existing.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}

	var requests []*sheets.Request
	for _, tab := range tabs {
		if _, ok := ids[tab]; ok {
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{Properties: tabProperties(tab)},
		})
	}
	if len(requests) == 0 {
		return existing.SpreadsheetId, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(existing.SpreadsheetId,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, r := range resp.Replies {
		if r.AddSheet != nil {
			ids[r.AddSheet.Properties.Title] = r.AddSheet.Properties.SheetId
		}
	}
	return existing.SpreadsheetId, ids, nil
}

func (w *Writer) createSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
			Locale:   "iw_IL",
		},
	}
	for _, tab := range tabs {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{Properties: tabProperties(tab)})
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	ids := make(map[string]int64, len(tabs))
	for _, s := range created.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}
	w.logger.Info("Created new spreadsheet", "id", created.SpreadsheetId, "url", created.SpreadsheetUrl)

	// Later exports reuse it.
	w.config.SpreadsheetID = created.SpreadsheetId
	return created.SpreadsheetId, ids, nil
}

func tabProperties(title string) *sheets.SheetProperties {
	return &sheets.SheetProperties{
		Title:       title,
		RightToLeft: true,
		GridProperties: &sheets.GridProperties{
			FrozenRowCount: 1,
		},
	}
}

func (w *Writer) clearTab(ctx context.Context, spreadsheetID, tab string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, quoteTab(tab)+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

func quoteTab(tab string) string {
	return "'" + tab + "'"
}

// writeData writes values in batches to stay under API request limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		rangeStr := fmt.Sprintf("%s!A%d", quoteTab(tab), i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write %s batch starting at row %d: %w", tab, i+1, err)
		}

		w.logger.Debug("Wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

// Column layouts. The amount column is formatted as shekels.
var (
	transactionHeader = []any{"תאריך", "ספק", "קטגוריה", "קבוצה", "כיוון", "סכום"}
	categoryHeader    = []any{"קטגוריה", "קבוצה", "תנועות", "סכום", "% מההוצאות"}
	flowHeader        = []any{"חודש", "הכנסות", "הוצאות", "נטו", "יתרה מצטברת"}
)

var amountColumn = map[string]int64{
	TabTransactions: 5,
	TabCategories:   3,
	TabMonthlyFlow:  1,
}

func directionLabel(d model.Direction) string {
	if d == model.DirectionIncome {
		return "הכנסה"
	}
	return "הוצאה"
}

func transactionValues(r *Report) [][]any {
	values := make([][]any, 0, len(r.Transactions)+1)
	values = append(values, transactionHeader)
	for _, t := range r.Transactions {
		values = append(values, []any{
			t.Date.Format("2006-01-02"),
			t.Vendor,
			t.Category,
			t.Group,
			directionLabel(t.Direction),
			t.Amount.InexactFloat64(),
		})
	}
	return values
}

func categoryValues(r *Report) [][]any {
	values := make([][]any, 0, len(r.Categories)+3)
	values = append(values, categoryHeader)
	for _, c := range r.Categories {
		values = append(values, []any{c.Name, c.Group, c.Count, c.Amount.InexactFloat64(), c.Share.InexactFloat64()})
	}
	values = append(values,
		[]any{},
		[]any{"סה\"כ הוצאות", "", "", r.TotalExpenses.InexactFloat64()},
	)
	return values
}

func flowValues(r *Report) [][]any {
	values := make([][]any, 0, len(r.Months)+3)
	values = append(values, flowHeader)
	for _, m := range r.Months {
		values = append(values, []any{
			m.Month,
			m.Income.InexactFloat64(),
			m.Expenses.InexactFloat64(),
			m.Net.InexactFloat64(),
			m.RunningBalance.InexactFloat64(),
		})
	}
	values = append(values,
		[]any{},
		[]any{"סה\"כ", r.TotalIncome.InexactFloat64(), r.TotalExpenses.InexactFloat64(),
			r.TotalIncome.Sub(r.TotalExpenses).InexactFloat64()},
	)
	return values
}

// formatRequests bolds the header rows, formats amounts as shekels and sizes
// the columns of every tab.
func formatRequests(ids map[string]int64) []*sheets.Request {
	var requests []*sheets.Request
	for _, tab := range tabs {
		sheetID, ok := ids[tab]
		if !ok {
			continue
		}
		col := amountColumn[tab]
		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
							BackgroundColor: &sheets.Color{
								Red:   0.9,
								Green: 0.9,
								Blue:  0.9,
								Alpha: 1.0,
							},
						},
					},
					Fields: "userEnteredFormat.textFormat,userEnteredFormat.backgroundColor",
				},
			},
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheetID,
						StartRowIndex:    1,
						StartColumnIndex: col,
						EndColumnIndex:   amountEnd(tab),
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							NumberFormat: &sheets.NumberFormat{
								Type:    "CURRENCY",
								Pattern: "₪#,##0.00",
							},
						},
					},
					Fields: "userEnteredFormat.numberFormat",
				},
			},
			&sheets.Request{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "COLUMNS",
						StartIndex: 0,
						EndIndex:   6,
					},
				},
			},
		)
	}
	return requests
}

// amountEnd is the exclusive end of the amount columns of a tab.
func amountEnd(tab string) int64 {
	if tab == TabMonthlyFlow {
		return 5
	}
	return amountColumn[tab] + 1
}

func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, ids map[string]int64) error {
	requests := formatRequests(ids)
	if len(requests) == 0 {
		return nil
	}
	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}
