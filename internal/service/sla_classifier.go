package service

import (
	"math"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// DefaultSLAWarningWindow is the span before a due time in which a ticket is at risk.
const DefaultSLAWarningWindow = 2 * time.Hour

// ClassifySLA maps a due time to its risk tier. It is total and pure:
// no due time is no_sla, a due time at or before now is a breach, a due
// time within window is a warning, anything later is safe.
func ClassifySLA(dueAt *time.Time, now time.Time, window time.Duration) domain.SLAStatus {
	if dueAt == nil {
		return domain.SLAStatus{Tier: domain.SLANone}
	}
	if window <= 0 {
		window = DefaultSLAWarningWindow
	}
	remaining := dueAt.Sub(now)
	millis := remaining.Milliseconds()
	status := domain.SLAStatus{RemainingMillis: &millis}
	switch {
	case remaining <= 0:
		status.Tier = domain.SLABreach
	case remaining <= window:
		status.Tier = domain.SLAWarning
	default:
		status.Tier = domain.SLASafe
	}
	return status
}

// WarningWindowFor returns the queue's warning window, or fallback when the
// queue does not override it.
func WarningWindowFor(queue *domain.Queue, fallback time.Duration) time.Duration {
	if queue != nil && queue.SLAWarningMinutes > 0 {
		return time.Duration(queue.SLAWarningMinutes) * time.Minute
	}
	if fallback <= 0 {
		return DefaultSLAWarningWindow
	}
	return fallback
}

// SLASummary counts a queue's open tickets per tier.
type SLASummary struct {
	Safe    int `json:"safe"`
	Warning int `json:"warning"`
	Breach  int `json:"breach"`
	NoSLA   int `json:"no_sla"`
}

// RiskSource says where a breach risk figure came from.
type RiskSource string

const (
	RiskExternal RiskSource = "external"
	RiskDerived  RiskSource = "derived"
	RiskUnknown  RiskSource = "unknown"
)

// BreachRisk is the queue-level SLA breach risk.
type BreachRisk struct {
	Pct                 float64    `json:"breach_risk_pct"`
	MinutesToNextBreach *int       `json:"minutes_to_next_breach,omitempty"`
	Source              RiskSource `json:"source"`
}

// Known reports whether Pct carries a real value.
func (r BreachRisk) Known() bool {
	return r.Source != RiskUnknown && r.Source != ""
}

// SLAAggregate is the derived SLA view of a queue.
type SLAAggregate struct {
	Summary  SLASummary
	Risk     BreachRisk
	Breached []string
}

// AggregateSLA classifies every open ticket and derives the breach risk as
// breached / open. Terminal tickets are ignored.
func AggregateSLA(tickets []domain.Ticket, now time.Time, window time.Duration) SLAAggregate {
	var agg SLAAggregate
	open := 0
	var next *time.Duration
	for _, t := range tickets {
		if !t.IsOpen() {
			continue
		}
		open++
		status := ClassifySLA(t.DueAt, now, window)
		switch status.Tier {
		case domain.SLABreach:
			agg.Summary.Breach++
			agg.Breached = append(agg.Breached, t.ID)
		case domain.SLAWarning:
			agg.Summary.Warning++
		case domain.SLASafe:
			agg.Summary.Safe++
		default:
			agg.Summary.NoSLA++
		}
		if t.DueAt != nil {
			if remaining := t.DueAt.Sub(now); remaining > 0 && (next == nil || remaining < *next) {
				next = &remaining
			}
		}
	}

	agg.Risk.Source = RiskDerived
	if open > 0 {
		agg.Risk.Pct = round1(float64(agg.Summary.Breach) / float64(open) * 100)
	}
	if next != nil {
		minutes := int(math.Ceil(next.Minutes()))
		agg.Risk.MinutesToNextBreach = &minutes
	}
	return agg
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
