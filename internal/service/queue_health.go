package service

import (
	"github.com/spec-kit/queue-engine/internal/config"
)

// HealthTier summarizes queue load.
type HealthTier string

const (
	HealthExcellent HealthTier = "excellent"
	HealthGood      HealthTier = "good"
	HealthWarning   HealthTier = "warning"
	HealthCritical  HealthTier = "critical"
	HealthUnknown   HealthTier = "unknown"
)

// Rank orders tiers for metrics; unknown is -1.
func (h HealthTier) Rank() int {
	switch h {
	case HealthExcellent:
		return 0
	case HealthGood:
		return 1
	case HealthWarning:
		return 2
	case HealthCritical:
		return 3
	}
	return -1
}

// Trend is the direction of utilization between two consecutive samples.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// HealthReport is the evaluator output.
type HealthReport struct {
	Health HealthTier `json:"health"`
	Trend  Trend      `json:"trend"`
}

// QueueHealthEvaluator maps utilization to a tier. Each threshold is the
// inclusive lower bound of its tier.
type QueueHealthEvaluator struct {
	criticalPct float64
	warningPct  float64
	goodPct     float64
	hysteresis  float64
}

// NewQueueHealthEvaluator builds an evaluator from the monitor thresholds.
func NewQueueHealthEvaluator(cfg config.MonitorConfig) *QueueHealthEvaluator {
	hysteresis := cfg.TrendHysteresisPct
	if hysteresis < 0 {
		hysteresis = 0
	}
	return &QueueHealthEvaluator{
		criticalPct: cfg.HealthCriticalPct,
		warningPct:  cfg.HealthWarningPct,
		goodPct:     cfg.HealthGoodPct,
		hysteresis:  hysteresis,
	}
}

// Tier returns the health tier for a utilization percentage.
func (e *QueueHealthEvaluator) Tier(pct float64) HealthTier {
	switch {
	case pct >= e.criticalPct:
		return HealthCritical
	case pct >= e.warningPct:
		return HealthWarning
	case pct >= e.goodPct:
		return HealthGood
	default:
		return HealthExcellent
	}
}

// CriticalPct is the lower bound of the critical tier.
func (e *QueueHealthEvaluator) CriticalPct() float64 {
	return e.criticalPct
}

// Evaluate returns the tier and the trend against previous. A nil previous
// (first sample) is stable.
func (e *QueueHealthEvaluator) Evaluate(pct float64, previous *float64) HealthReport {
	report := HealthReport{Health: e.Tier(pct), Trend: TrendStable}
	if previous == nil {
		return report
	}
	delta := pct - *previous
	switch {
	case delta > e.hysteresis:
		report.Trend = TrendUp
	case delta < -e.hysteresis:
		report.Trend = TrendDown
	}
	return report
}

// EvaluateUtilization is Evaluate with the unknown case folded in.
func (e *QueueHealthEvaluator) EvaluateUtilization(u Utilization, previous *float64) HealthReport {
	if !u.Known {
		return HealthReport{Health: HealthUnknown, Trend: TrendStable}
	}
	return e.Evaluate(u.Pct, previous)
}
