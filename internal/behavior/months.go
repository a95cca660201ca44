package behavior

import (
	"fmt"
	"time"

	"github.com/Idosegev23/finhealer/internal/model"
	"github.com/Idosegev23/finhealer/internal/vendor"
)

// month is a calendar month as a single integer, so consecutive months
// differ by exactly one.
type month int

func monthOf(t time.Time) month {
	return month(t.Year()*12 + int(t.Month()) - 1)
}

func (m month) year() int {
	return int(m) / 12
}

func (m month) calendar() time.Month {
	return time.Month(int(m)%12 + 1)
}

func (m month) String() string {
	return fmt.Sprintf("%04d-%02d", m.year(), int(m.calendar()))
}

func (m month) start() time.Time {
	return time.Date(m.year(), m.calendar(), 1, 0, 0, 0, 0, time.UTC)
}

var hebrewMonths = [...]string{
	"ינואר", "פברואר", "מרץ", "אפריל", "מאי", "יוני",
	"יולי", "אוגוסט", "ספטמבר", "אוקטובר", "נובמבר", "דצמבר",
}

func hebrewMonth(m time.Month) string {
	return hebrewMonths[m-1]
}

var hebrewWeekdays = [...]string{
	"ראשון", "שני", "שלישי", "רביעי", "חמישי", "שישי", "שבת",
}

// spending keeps confirmed expenses only. Proposed and rejected rows never
// count toward any aggregate.
func spending(txns []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Status == model.StatusConfirmed && t.Direction == model.DirectionExpense {
			out = append(out, t)
		}
	}
	return out
}

func vendorKey(t model.Transaction) string {
	if t.NormalizedVendor != "" {
		return t.NormalizedVendor
	}
	return vendor.Normalize(t.Vendor)
}

func categoryKey(t model.Transaction) string {
	if t.Category == "" {
		return "ללא קטגוריה"
	}
	return t.Category
}

// byCategoryMonth sums spend per category per month and records which months
// have any spend at all.
func byCategoryMonth(txns []model.Transaction) (map[string]map[month]float64, map[month]bool) {
	sums := make(map[string]map[month]float64)
	covered := make(map[month]bool)
	for _, t := range txns {
		m := monthOf(t.Date)
		covered[m] = true
		c := categoryKey(t)
		if sums[c] == nil {
			sums[c] = make(map[month]float64)
		}
		sums[c][m] += t.Amount
	}
	return sums, covered
}
