package behavior

import (
	"fmt"
	"math"
	"sort"

	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
)

// RecurringCandidate is a vendor charged a similar amount in consecutive months.
type RecurringCandidate struct {
	Vendor     string  `json:"vendor"`
	FirstMonth string  `json:"first_month"` // YYYY-MM
	LastMonth  string  `json:"last_month"`
	Amount     float64 `json:"amount"`      // median of the matched charges
	Total      float64 `json:"total"`       // sum of the matched charges
	MonthsSeen int     `json:"months_seen"` // length of the longest run of consecutive months
}

// DetectRecurring finds vendors with matching charges in at least two
// consecutive calendar months. Two charges match when they differ by at most
// RecurringTolerance of the larger one. Results are ordered by Total
// descending, then vendor name.
func DetectRecurring(txns []model.Transaction, p config.Policy) []RecurringCandidate {
	byVendor := make(map[string]map[month][]float64)
	for _, t := range spending(txns) {
		v := vendorKey(t)
		if v == "" {
			continue
		}
		if byVendor[v] == nil {
			byVendor[v] = make(map[month][]float64)
		}
		m := monthOf(t.Date)
		byVendor[v][m] = append(byVendor[v][m], t.Amount)
	}

	var out []RecurringCandidate
	for v, buckets := range byVendor {
		if c, ok := longestRun(v, buckets, p.RecurringTolerance); ok {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Vendor < out[j].Vendor
	})
	return out
}

// longestRun walks a vendor's months in order and chains one charge per month.
// A chain continues while the next month holds a charge within tolerance of
// the previous link; the longest chain wins, the later one on ties.
func longestRun(v string, buckets map[month][]float64, tol float64) (RecurringCandidate, bool) {
	months := make([]month, 0, len(buckets))
	for m := range buckets {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	var (
		best      []float64
		bestStart month
		run       []float64
		runStart  month
	)
	for i, m := range months {
		extended := false
		if i > 0 && m == months[i-1]+1 {
			if len(run) > 0 {
				if b, ok := closestTo(buckets[m], run[len(run)-1], tol); ok {
					run = append(run, b)
					extended = true
				}
			}
			if !extended {
				// Open a new chain with the closest pair across the two months.
				if a, b, ok := closestPair(buckets[months[i-1]], buckets[m], tol); ok {
					run = []float64{a, b}
					runStart = months[i-1]
					extended = true
				}
			}
		}
		if !extended {
			run = nil
			continue
		}
		if len(run) >= len(best) {
			best = append(best[:0:0], run...)
			bestStart = runStart
		}
	}

	if len(best) < 2 {
		return RecurringCandidate{}, false
	}

	total := 0.0
	for _, a := range best {
		total += a
	}
	return RecurringCandidate{
		Vendor:     v,
		FirstMonth: bestStart.String(),
		LastMonth:  (bestStart + month(len(best)-1)).String(),
		Amount:     median(best),
		Total:      round2(total),
		MonthsSeen: len(best),
	}, true
}

func matches(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(a, b)+1e-9
}

func closestPair(xs, ys []float64, tol float64) (float64, float64, bool) {
	bestDiff := math.Inf(1)
	var ba, bb float64
	for _, a := range xs {
		for _, b := range ys {
			if d := math.Abs(a - b); matches(a, b, tol) && d < bestDiff {
				bestDiff, ba, bb = d, a, b
			}
		}
	}
	return ba, bb, !math.IsInf(bestDiff, 1)
}

func closestTo(xs []float64, ref, tol float64) (float64, bool) {
	bestDiff := math.Inf(1)
	var best float64
	for _, x := range xs {
		if d := math.Abs(x - ref); matches(x, ref, tol) && d < bestDiff {
			bestDiff, best = d, x
		}
	}
	return best, !math.IsInf(bestDiff, 1)
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return round2((s[n/2-1] + s[n/2]) / 2)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func (c RecurringCandidate) describe() string {
	return fmt.Sprintf("חיוב קבוע ב%s: כ-%.2f ₪ בחודש, %d חודשים ברציפות", c.Vendor, c.Amount, c.MonthsSeen)
}
