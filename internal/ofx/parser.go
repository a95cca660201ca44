// Package ofx reads OFX/QFX bank and credit card statements into proposed
// transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Idosegev23/finhealer/internal/common"
	"github.com/Idosegev23/finhealer/internal/engine"
	"github.com/Idosegev23/finhealer/internal/model"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at the end of a line that lost their closing bracket.
	openTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	datePrefix     = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"רכישה בכרטיס ",
	"הוראת קבע ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
	"חיוב":            true,
	"זיכוי":           true,
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{logger: slog.Default().With("component", "ofx")}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, common.Validationf("failed to parse OFX file: %v", err)
	}
	return resp, nil
}

// ParseFile returns the statement lines as proposed transactions with
// source ofx. Debits become expenses and credits income.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	}
	resp, err := parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			transactions = append(transactions, p.convertAll(stmt.BankTranList.Transactions)...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) convertAll(lines []ofxgo.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(lines))
	for _, line := range lines {
		tx, ok := convertTransaction(line)
		if !ok {
			p.logger.Warn("Skipping statement line", "fitid", string(line.FiTID))
			continue
		}
		out = append(out, tx)
	}
	return out
}

// convertTransaction maps one statement line. Zero amounts and lines without
// a usable name are skipped.
func convertTransaction(line ofxgo.Transaction) (model.Transaction, bool) {
	amount, _ := line.TrnAmt.Float64()
	if amount == 0 {
		return model.Transaction{}, false
	}
	direction := model.DirectionExpense
	if amount > 0 {
		direction = model.DirectionIncome
	} else {
		amount = -amount
	}

	name := extractMerchantName(line)
	if name == "" {
		return model.Transaction{}, false
	}

	return model.Transaction{
		Date:      line.DtPosted.Time.UTC(),
		Vendor:    name,
		Amount:    amount,
		Direction: direction,
		Status:    model.StatusProposed,
		Source:    model.SourceOFX,
	}, true
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && (name == "" || genericNames[strings.ToUpper(name)]) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return strings.TrimSpace(datePrefix.ReplaceAllString(name, ""))
}

// GetAccounts extracts the sorted unique account IDs from the OFX file.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			seen[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			seen[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// Classifier stores parsed transactions for a user.
type Classifier interface {
	ClassifyIncoming(ctx context.Context, userID string, txns []model.Transaction) (*engine.IncomingResult, error)
}

// Importer parses a statement and hands it to the classifier.
type Importer struct {
	parser     *Parser
	classifier Classifier
}

// NewImporter creates an importer.
func NewImporter(classifier Classifier) *Importer {
	return &Importer{parser: NewParser(), classifier: classifier}
}

// Import parses reader and classifies its transactions for userID. An empty
// statement is common.ErrNoTransactions.
func (i *Importer) Import(ctx context.Context, userID string, reader io.Reader) (*engine.IncomingResult, error) {
	txns, err := i.parser.ParseFile(ctx, reader)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, common.ErrNoTransactions
	}
	return i.classifier.ClassifyIncoming(ctx, userID, txns)
}
