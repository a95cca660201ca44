// Package behavior derives read-only spending insights from a user's
// confirmed transactions.
package behavior

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Idosegev23/finhealer/internal/config"
	"github.com/Idosegev23/finhealer/internal/model"
)

// Kind names an insight type.
type Kind string

// Insight kinds.
const (
	KindRecurring        Kind = "recurring"
	KindSpike            Kind = "spike"
	KindTrend            Kind = "trend"
	KindDayPattern       Kind = "day_pattern"
	KindSeasonality      Kind = "seasonality"
	KindInsufficientData Kind = "insufficient_data"
)

// Direction of a trend.
type Direction string

// Trend directions.
const (
	TrendUp   Direction = "up"
	TrendFlat Direction = "flat"
	TrendDown Direction = "down"
)

// Insight is one finding, ready for the composer and the dashboard.
type Insight struct {
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	Period      string    `json:"period,omitempty"`
	Trend       Direction `json:"trend,omitempty"`
	Magnitude   float64   `json:"magnitude"`
}

// Spikes compares each category's spend in the month of at against the
// average of the SpikeWindowMonths before it. Every one of those months must
// have data; a spike is spend above average * (1 + SpikeThreshold).
func Spikes(txns []model.Transaction, at time.Time, p config.Policy) []Insight {
	sums, covered := byCategoryMonth(spending(txns))
	target := monthOf(at)

	window := p.SpikeWindowMonths
	if window <= 0 {
		return nil
	}
	for k := 1; k <= window; k++ {
		if !covered[target-month(k)] {
			return nil
		}
	}

	var out []Insight
	for _, cat := range sortedKeys(sums) {
		byMonth := sums[cat]
		spend := byMonth[target]
		if spend == 0 {
			continue
		}
		avg := 0.0
		for k := 1; k <= window; k++ {
			avg += byMonth[target-month(k)]
		}
		avg /= float64(window)
		if avg <= 0 || spend <= avg*(1+p.SpikeThreshold) {
			continue
		}
		rise := spend/avg - 1
		out = append(out, Insight{
			Kind:      KindSpike,
			Category:  cat,
			Period:    target.String(),
			Magnitude: round2(rise),
			Description: fmt.Sprintf("ההוצאה על %s ב%s (%.0f ₪) גבוהה ב-%.0f%% מהממוצע של %d החודשים הקודמים (%.0f ₪)",
				cat, hebrewMonth(target.calendar()), spend, rise*100, window, avg),
		})
	}
	return out
}

// Trends fits a least-squares line to each category's monthly totals over the
// months with data in [from, to]. The slope relative to the mean decides the
// direction. Fewer than three months yields nothing.
func Trends(txns []model.Transaction, from, to time.Time, p config.Policy) []Insight {
	sums, covered := byCategoryMonth(spending(txns))

	var months []month
	for m := monthOf(from); m <= monthOf(to); m++ {
		if covered[m] {
			months = append(months, m)
		}
	}
	if len(months) < 3 {
		return nil
	}
	period := months[0].String() + ".." + months[len(months)-1].String()

	var out []Insight
	for _, cat := range sortedKeys(sums) {
		values := make([]float64, len(months))
		mean := 0.0
		for i, m := range months {
			values[i] = sums[cat][m]
			mean += values[i]
		}
		mean /= float64(len(values))
		if mean == 0 {
			continue
		}

		slope := linearSlope(values)
		rel := slope / mean
		dir := TrendFlat
		desc := fmt.Sprintf("ההוצאה על %s יציבה", cat)
		switch {
		case rel >= p.TrendSlopeThreshold:
			dir = TrendUp
			desc = fmt.Sprintf("ההוצאה על %s במגמת עלייה של כ-%.0f%% בחודש", cat, rel*100)
		case rel <= -p.TrendSlopeThreshold:
			dir = TrendDown
			desc = fmt.Sprintf("ההוצאה על %s במגמת ירידה של כ-%.0f%% בחודש", cat, -rel*100)
		}
		out = append(out, Insight{
			Kind:        KindTrend,
			Category:    cat,
			Period:      period,
			Trend:       dir,
			Magnitude:   round2(rel),
			Description: desc,
		})
	}
	return out
}

// linearSlope returns the least-squares slope of values against their index.
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// DayPatterns flags weekdays that carry more than DominantDayShare of spend.
func DayPatterns(txns []model.Transaction, p config.Policy) []Insight {
	var byDay [7]float64
	total := 0.0
	for _, t := range spending(txns) {
		byDay[t.Date.Weekday()] += t.Amount
		total += t.Amount
	}
	if total == 0 {
		return nil
	}

	var out []Insight
	for d, amount := range byDay {
		share := amount / total
		if share <= p.DominantDayShare {
			continue
		}
		out = append(out, Insight{
			Kind:        KindDayPattern,
			Period:      time.Weekday(d).String(),
			Magnitude:   round2(share),
			Description: fmt.Sprintf("%.0f%% מההוצאות שלך נעשות ביום %s", share*100, hebrewWeekdays[d]),
		})
	}
	return out
}

// Seasonality compares each calendar month, averaged over the years it
// appears in, against the average month. It needs the same calendar month in
// at least two years and otherwise says so instead of guessing.
func Seasonality(txns []model.Transaction, p config.Policy) []Insight {
	type agg struct {
		sum   float64
		years map[int]bool
	}

	spent := spending(txns)
	perMonth := make(map[month]float64)
	for _, t := range spent {
		perMonth[monthOf(t.Date)] += t.Amount
	}

	byCal := make(map[time.Month]*agg)
	repeated := false
	for m, v := range perMonth {
		a := byCal[m.calendar()]
		if a == nil {
			a = &agg{years: make(map[int]bool)}
			byCal[m.calendar()] = a
		}
		a.sum += v
		a.years[m.year()] = true
		repeated = repeated || len(a.years) >= 2
	}

	if !repeated {
		return []Insight{{
			Kind:        KindInsufficientData,
			Description: "אין עדיין מספיק היסטוריה (שנתיים לפחות) כדי לזהות עונתיות",
		}}
	}

	overall := 0.0
	for _, v := range perMonth {
		overall += v
	}
	overall /= float64(len(perMonth))
	if overall == 0 {
		return nil
	}

	var out []Insight
	for cal := time.January; cal <= time.December; cal++ {
		a := byCal[cal]
		if a == nil || len(a.years) < 2 {
			continue
		}
		avg := a.sum / float64(len(a.years))
		diff := avg/overall - 1
		if math.Abs(diff) < p.SeasonalThreshold {
			continue
		}
		word := "גבוהות"
		if diff < 0 {
			word = "נמוכות"
		}
		out = append(out, Insight{
			Kind:        KindSeasonality,
			Period:      cal.String(),
			Magnitude:   round2(diff),
			Description: fmt.Sprintf("בחודש %s ההוצאות שלך %s בכ-%.0f%% מחודש ממוצע", hebrewMonth(cal), word, math.Abs(diff)*100),
		})
	}
	return out
}

// RecurringInsights turns recurring candidates into insights.
func RecurringInsights(candidates []RecurringCandidate) []Insight {
	out := make([]Insight, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Insight{
			Kind:        KindRecurring,
			Vendor:      c.Vendor,
			Period:      c.FirstMonth + ".." + c.LastMonth,
			Magnitude:   c.Amount,
			Description: c.describe(),
		})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
