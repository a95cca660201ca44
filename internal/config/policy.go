package config

import (
	"github.com/spf13/viper"
)

// Policy holds the business constants of classification, detection and the
// conversation router. Tests probe the boundaries through these fields.
type Policy struct {
	// Confidence tiers. Lower bounds are inclusive.
	AutoClassifyThreshold int
	ProposeThreshold      int

	// Learning adjustments.
	ConfirmIncrement     int
	CorrectionConfidence int
	InitialConfidence    int
	MaxConfidence        int

	// Recurring charges match when they differ by at most this share of the larger amount.
	RecurringTolerance float64

	// Behavior thresholds.
	SpikeThreshold      float64
	TrendSlopeThreshold float64
	DominantDayShare    float64
	SeasonalThreshold   float64
	LookbackMonths      int
	SpikeWindowMonths   int

	// Router: unmatched replies tolerated before a pending action is dropped.
	PendingRetryBudget int

	BulkMinGroupSize int
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		AutoClassifyThreshold: 90,
		ProposeThreshold:      70,
		ConfirmIncrement:      10,
		CorrectionConfidence:  50,
		InitialConfidence:     60,
		MaxConfidence:         100,
		RecurringTolerance:    0.05,
		SpikeThreshold:        0.50,
		TrendSlopeThreshold:   0.05,
		DominantDayShare:      0.30,
		SeasonalThreshold:     0.30,
		LookbackMonths:        6,
		SpikeWindowMonths:     3,
		PendingRetryBudget:    2,
		BulkMinGroupSize:      2,
	}
}

// LoadPolicy overlays policy.* keys from v on top of the defaults.
func LoadPolicy(v *viper.Viper) Policy {
	p := DefaultPolicy()
	if v == nil {
		return p
	}

	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	setInt("policy.auto_classify_threshold", &p.AutoClassifyThreshold)
	setInt("policy.propose_threshold", &p.ProposeThreshold)
	setInt("policy.confirm_increment", &p.ConfirmIncrement)
	setInt("policy.correction_confidence", &p.CorrectionConfidence)
	setInt("policy.initial_confidence", &p.InitialConfidence)
	setInt("policy.max_confidence", &p.MaxConfidence)
	setFloat("policy.recurring_tolerance", &p.RecurringTolerance)
	setFloat("policy.spike_threshold", &p.SpikeThreshold)
	setFloat("policy.trend_slope_threshold", &p.TrendSlopeThreshold)
	setFloat("policy.dominant_day_share", &p.DominantDayShare)
	setFloat("policy.seasonal_threshold", &p.SeasonalThreshold)
	setInt("policy.lookback_months", &p.LookbackMonths)
	setInt("policy.spike_window_months", &p.SpikeWindowMonths)
	setInt("policy.pending_retry_budget", &p.PendingRetryBudget)
	setInt("policy.bulk_min_group_size", &p.BulkMinGroupSize)

	return p
}
