package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Idosegev23/finhealer/internal/common"
)

func TestCalculate(t *testing.T) {
	table := Table2024()

	tests := []struct {
		name         string
		gross        string
		points       string
		wantBefore   string
		wantTax      string
		wantNet      string
		wantMarginal string
	}{
		{name: "zero income", gross: "0", points: "2.25", wantBefore: "0", wantTax: "0", wantNet: "0", wantMarginal: "0"},
		{name: "inside first bracket", gross: "5000", points: "2.25", wantBefore: "500", wantTax: "0", wantNet: "5000", wantMarginal: "0.1"},
		{name: "first bracket ceiling", gross: "7010", points: "0", wantBefore: "701", wantTax: "701", wantNet: "6309", wantMarginal: "0.1"},
		// 701 + 3050*0.14 + 1940*0.20 = 701 + 427 + 388
		{name: "third bracket", gross: "12000", points: "2.25", wantBefore: "1516", wantTax: "971.5", wantNet: "11028.5", wantMarginal: "0.2"},
		// 701 + 427 + 1218 + 1949.9 + 8487.5 + 6316.8 + 0.5*9870
		{name: "top bracket", gross: "70000", points: "0", wantBefore: "24035.2", wantTax: "24035.2", wantNet: "45964.8", wantMarginal: "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := table.Calculate(Input{
				Gross:        decimal.RequireFromString(tt.gross),
				CreditPoints: decimal.RequireFromString(tt.points),
			})
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantBefore).Equal(res.TaxBeforeCredits), "before credits: %s", res.TaxBeforeCredits)
			assert.True(t, decimal.RequireFromString(tt.wantTax).Equal(res.Tax), "tax: %s", res.Tax)
			assert.True(t, decimal.RequireFromString(tt.wantNet).Equal(res.Net), "net: %s", res.Net)
			assert.True(t, decimal.RequireFromString(tt.wantMarginal).Equal(res.MarginalRate), "marginal: %s", res.MarginalRate)
			assert.False(t, res.Tax.IsNegative())
		})
	}
}

func TestCalculate_CreditsCappedAtTax(t *testing.T) {
	res, err := Table2024().Calculate(Input{Gross: decimal.NewFromInt(3000), CreditPoints: DefaultCreditPoints})
	require.NoError(t, err)
	assert.True(t, res.Tax.IsZero())
	assert.True(t, res.Credits.Equal(decimal.NewFromInt(300)))
}

func TestCalculate_Validation(t *testing.T) {
	_, err := Table2024().Calculate(Input{Gross: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = Table2024().Calculate(Input{Gross: decimal.NewFromInt(1), CreditPoints: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Table2024().Validate())

	bad := Table{Year: 1, Brackets: []Bracket{{Rate: decimal.RequireFromString("0.1")}, {UpTo: decimal.NewFromInt(10), Rate: decimal.RequireFromString("0.2")}}}
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)

	descending := Table{Year: 1, Brackets: []Bracket{
		{UpTo: decimal.NewFromInt(10), Rate: decimal.RequireFromString("0.1")},
		{UpTo: decimal.NewFromInt(5), Rate: decimal.RequireFromString("0.2")},
	}}
	assert.ErrorIs(t, descending.Validate(), common.ErrInvalidConfig)

	assert.ErrorIs(t, Table{}.Validate(), common.ErrInvalidConfig)
}
