// Package tax estimates Israeli monthly income tax for a salaried employee.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Idosegev23/finhealer/internal/common"
)

// Bracket taxes the income between the previous bracket's ceiling and UpTo.
// A zero UpTo marks the open top bracket.
type Bracket struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

// Table is one tax year's monthly brackets and credit point value.
type Table struct {
	Brackets         []Bracket
	CreditPointValue decimal.Decimal
	Year             int
}

// Input is a calculation request.
type Input struct {
	Gross        decimal.Decimal `json:"gross"`
	CreditPoints decimal.Decimal `json:"credit_points"`
}

// Result is the monthly breakdown. Amounts are rounded to agorot.
type Result struct {
	Gross            decimal.Decimal `json:"gross"`
	TaxBeforeCredits decimal.Decimal `json:"tax_before_credits"`
	Credits          decimal.Decimal `json:"credits"`
	Tax              decimal.Decimal `json:"tax"`
	Net              decimal.Decimal `json:"net"`
	MarginalRate     decimal.Decimal `json:"marginal_rate"`
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
	Year             int             `json:"year"`
}

// DefaultCreditPoints is the basic allowance of a resident.
var DefaultCreditPoints = decimal.RequireFromString("2.25")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Table2024 returns the 2024 monthly brackets, including the 3% surtax on
// the top bracket.
func Table2024() Table {
	return Table{
		Year:             2024,
		CreditPointValue: d("242"),
		Brackets: []Bracket{
			{UpTo: d("7010"), Rate: d("0.10")},
			{UpTo: d("10060"), Rate: d("0.14")},
			{UpTo: d("16150"), Rate: d("0.20")},
			{UpTo: d("22440"), Rate: d("0.31")},
			{UpTo: d("46690"), Rate: d("0.35")},
			{UpTo: d("60130"), Rate: d("0.47")},
			{Rate: d("0.50")},
		},
	}
}

// Validate checks that brackets ascend and only the last one is open.
func (t Table) Validate() error {
	if len(t.Brackets) == 0 {
		return fmt.Errorf("%w: tax table %d has no brackets", common.ErrInvalidConfig, t.Year)
	}
	prev := decimal.Zero
	for i, b := range t.Brackets {
		last := i == len(t.Brackets)-1
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: bracket %d rate %s", common.ErrInvalidConfig, i, b.Rate)
		}
		if b.UpTo.IsZero() {
			if !last {
				return fmt.Errorf("%w: open bracket %d is not last", common.ErrInvalidConfig, i)
			}
			continue
		}
		if !b.UpTo.GreaterThan(prev) {
			return fmt.Errorf("%w: bracket %d ceiling %s does not ascend", common.ErrInvalidConfig, i, b.UpTo)
		}
		prev = b.UpTo
	}
	return nil
}

// Calculate applies the brackets to in.Gross and subtracts the credit points.
// Credits never push the tax below zero.
func (t Table) Calculate(in Input) (Result, error) {
	if in.Gross.IsNegative() {
		return Result{}, common.Validationf("gross income cannot be negative")
	}
	if in.CreditPoints.IsNegative() {
		return Result{}, common.Validationf("credit points cannot be negative")
	}
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	gross := in.Gross
	owed := decimal.Zero
	marginal := decimal.Zero
	floor := decimal.Zero
	for _, b := range t.Brackets {
		if !gross.GreaterThan(floor) {
			break
		}
		ceiling := gross
		if !b.UpTo.IsZero() && b.UpTo.LessThan(gross) {
			ceiling = b.UpTo
		}
		owed = owed.Add(ceiling.Sub(floor).Mul(b.Rate))
		marginal = b.Rate
		if b.UpTo.IsZero() {
			break
		}
		floor = b.UpTo
	}

	credits := in.CreditPoints.Mul(t.CreditPointValue)
	tax := decimal.Max(owed.Sub(credits), decimal.Zero)

	res := Result{
		Year:             t.Year,
		Gross:            gross.Round(2),
		TaxBeforeCredits: owed.Round(2),
		Credits:          decimal.Min(credits, owed).Round(2),
		Tax:              tax.Round(2),
		Net:              gross.Sub(tax).Round(2),
		MarginalRate:     marginal,
		EffectiveRate:    decimal.Zero,
	}
	if gross.IsPositive() {
		res.EffectiveRate = tax.Div(gross).Round(4)
	}
	return res, nil
}
