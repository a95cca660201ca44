package sheets

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Idosegev23/finhealer/internal/catalog"
	"github.com/Idosegev23/finhealer/internal/model"
)

// DateRange is the period a report covers. End is exclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionRow is one line of the transactions tab.
type TransactionRow struct {
	Date      time.Time
	Vendor    string
	Category  string
	Group     string
	Direction model.Direction
	Amount    decimal.Decimal
}

// CategoryRow is one expense category in the summary tab.
type CategoryRow struct {
	Name   string
	Group  string
	Amount decimal.Decimal
	Share  decimal.Decimal // percent of total expenses
	Count  int
}

// MonthlyFlowRow is one month of income against expenses.
type MonthlyFlowRow struct {
	Month          string // YYYY-MM
	Income         decimal.Decimal
	Expenses       decimal.Decimal
	Net            decimal.Decimal
	RunningBalance decimal.Decimal
}

// Report holds everything one export writes.
type Report struct {
	Period        DateRange
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Transactions  []TransactionRow
	Categories    []CategoryRow
	Months        []MonthlyFlowRow
}

// BuildReport summarizes confirmed transactions. Other statuses are ignored.
// Amounts are rounded to agorot.
func BuildReport(txns []model.Transaction, period DateRange) *Report {
	r := &Report{Period: period}
	hundred := decimal.NewFromInt(100)

	cats := make(map[string]*CategoryRow)
	months := make(map[string]*MonthlyFlowRow)

	for _, t := range txns {
		if t.Status != model.StatusConfirmed {
			continue
		}
		amount := decimal.NewFromFloat(t.Amount).Round(2)
		group := ""
		if c, ok := catalog.Find(t.Category); ok {
			group = c.Group
		}
		r.Transactions = append(r.Transactions, TransactionRow{
			Date:      t.Date,
			Vendor:    t.Vendor,
			Category:  t.Category,
			Group:     group,
			Direction: t.Direction,
			Amount:    amount,
		})

		key := t.MonthKey()
		m, ok := months[key]
		if !ok {
			m = &MonthlyFlowRow{Month: key}
			months[key] = m
		}

		if t.Direction == model.DirectionIncome {
			r.TotalIncome = r.TotalIncome.Add(amount)
			m.Income = m.Income.Add(amount)
			continue
		}
		r.TotalExpenses = r.TotalExpenses.Add(amount)
		m.Expenses = m.Expenses.Add(amount)

		c, ok := cats[t.Category]
		if !ok {
			c = &CategoryRow{Name: t.Category, Group: group}
			cats[t.Category] = c
		}
		c.Amount = c.Amount.Add(amount)
		c.Count++
	}

	// Newest first, like a bank statement.
	sort.SliceStable(r.Transactions, func(i, j int) bool {
		return r.Transactions[i].Date.After(r.Transactions[j].Date)
	})

	for _, c := range cats {
		if r.TotalExpenses.IsPositive() {
			c.Share = c.Amount.Div(r.TotalExpenses).Mul(hundred).Round(1)
		}
		r.Categories = append(r.Categories, *c)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		if !r.Categories[i].Amount.Equal(r.Categories[j].Amount) {
			return r.Categories[i].Amount.GreaterThan(r.Categories[j].Amount)
		}
		return r.Categories[i].Name < r.Categories[j].Name
	})

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	running := decimal.Zero
	for _, k := range keys {
		m := months[k]
		m.Net = m.Income.Sub(m.Expenses)
		running = running.Add(m.Net)
		m.RunningBalance = running
		r.Months = append(r.Months, *m)
	}
	return r
}
