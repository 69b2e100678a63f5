package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

func newTestAlertEngine(dispatcher events.Dispatcher) *AlertEngine {
	clock := newFakeClock()
	return NewAlertEngine(AlertEngineDependencies{
		Config:     testMonitorConfig(),
		Dispatcher: dispatcher,
		Now:        clock.Now,
	})
}

func TestRingBufferKeepsLastFiveWithDuplicatesCollapsed(t *testing.T) {
	engine := newTestAlertEngine(nil)
	ctx := context.Background()
	messages := []string{"m1", "m2", "m2", "m3", "m4", "m5", "m6"}

	accepted := 0
	for _, msg := range messages {
		if _, ok := engine.Raise(ctx, "q-1", 1, domain.SeverityWarning, msg, nil); ok {
			accepted++
		}
	}
	assert.Equal(t, 6, accepted)

	got := engine.List("q-1")
	require.Len(t, got, 5)
	var order []string
	for _, a := range got {
		order = append(order, a.Message)
	}
	assert.Equal(t, []string{"m2", "m3", "m4", "m5", "m6"}, order)
}

func TestDuplicateDetectionIsPerCycleAndSeverity(t *testing.T) {
	engine := newTestAlertEngine(nil)
	ctx := context.Background()

	_, ok := engine.Raise(ctx, "q-1", 1, domain.SeverityWarning, "busy", nil)
	assert.True(t, ok)
	_, ok = engine.Raise(ctx, "q-1", 1, domain.SeverityCritical, "busy", nil)
	assert.True(t, ok, "different severity is not a duplicate")
	_, ok = engine.Raise(ctx, "q-2", 1, domain.SeverityWarning, "busy", nil)
	assert.True(t, ok, "different queue is not a duplicate")
	_, ok = engine.Raise(ctx, "q-1", 2, domain.SeverityWarning, "busy", nil)
	assert.True(t, ok, "next cycle may repeat")
	_, ok = engine.Raise(ctx, "q-1", 2, domain.SeverityWarning, "busy", nil)
	assert.False(t, ok)
}

func TestEvaluateThresholds(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		metrics QueueMetrics
		want    []domain.AlertSeverity
	}{
		{
			name:    "critical at 95",
			metrics: QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 95, Known: true}, Risk: BreachRisk{Source: RiskDerived}},
			want:    []domain.AlertSeverity{domain.SeverityCritical},
		},
		{
			name:    "nothing at 94.9",
			metrics: QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 94.9, Known: true}, Risk: BreachRisk{Source: RiskDerived}},
		},
		{
			name:    "unknown utilization never critical",
			metrics: QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 0, Known: false}, Risk: BreachRisk{Source: RiskDerived}},
		},
		{
			name:    "risk above 70",
			metrics: QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 10, Known: true}, Risk: BreachRisk{Pct: 70.1, Source: RiskExternal}},
			want:    []domain.AlertSeverity{domain.SeverityWarning},
		},
		{
			name:    "risk at exactly 70",
			metrics: QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 10, Known: true}, Risk: BreachRisk{Pct: 70, Source: RiskDerived}},
		},
		{
			name:    "unknown risk ignored",
			metrics: QueueMetrics{Cycle: 1, Risk: BreachRisk{Pct: 99, Source: RiskUnknown}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestAlertEngine(nil)
			raised := engine.Evaluate(ctx, "q-1", tt.metrics)
			var got []domain.AlertSeverity
			for _, a := range raised {
				got = append(got, a.Severity)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCriticalAlertPublishesCue(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	engine := newTestAlertEngine(dispatcher)
	engine.Evaluate(context.Background(), "q-1", QueueMetrics{Cycle: 1, Utilization: Utilization{Pct: 97, Known: true}})

	raised := dispatcher.ofType(events.EventAlertRaised)
	cues := dispatcher.ofType(events.EventAlertCue)
	require.Len(t, raised, 1)
	require.Len(t, cues, 1)
	cue := cues[0].Payload.(events.AlertCuePayload)
	assert.Equal(t, domain.SeverityCritical, cue.Severity)
	assert.Equal(t, raised[0].Payload.(events.AlertPayload).Alert.ID, cue.AlertID)
}

func TestBreachAlertsRaisedOncePerTicket(t *testing.T) {
	engine := newTestAlertEngine(nil)
	ctx := context.Background()

	first := engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 1, TicketsKnown: true, Breached: []string{"t-1", "t-2"}})
	require.Len(t, first, 2)
	require.NotNil(t, first[0].TicketID)

	second := engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 2, TicketsKnown: true, Breached: []string{"t-1", "t-2", "t-3"}})
	require.Len(t, second, 1)
	assert.Equal(t, "t-3", *second[0].TicketID)

	// an unknown ticket list leaves the notified set untouched
	assert.Empty(t, engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 3}))
	assert.Empty(t, engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 4, TicketsKnown: true, Breached: []string{"t-1"}}))
}

func TestClearTicketAndDismiss(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	engine := newTestAlertEngine(dispatcher)
	ctx := context.Background()

	engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 1, TicketsKnown: true, Breached: []string{"t-1", "t-2"}})
	other, ok := engine.Raise(ctx, "q-1", 1, domain.SeverityInfo, "note", nil)
	require.True(t, ok)

	removed := engine.ClearTicket(ctx, "q-1", "t-1")
	require.Len(t, removed, 1)
	assert.Len(t, engine.List("q-1"), 2)
	assert.Len(t, dispatcher.ofType(events.EventAlertCleared), 1)

	// cleared ticket may alert again if it breaches later
	again := engine.Evaluate(ctx, "q-1", QueueMetrics{Cycle: 2, TicketsKnown: true, Breached: []string{"t-1", "t-2"}})
	require.Len(t, again, 1)
	assert.Equal(t, "t-1", *again[0].TicketID)

	require.NoError(t, engine.Dismiss(ctx, "q-1", other.ID))
	assert.ErrorIs(t, engine.Dismiss(ctx, "q-1", other.ID), ErrAlertNotFound)
	assert.ErrorIs(t, engine.Dismiss(ctx, "missing", "x"), ErrAlertNotFound)
}

func TestAllOrdersAcrossQueues(t *testing.T) {
	clock := newFakeClock()
	engine := NewAlertEngine(AlertEngineDependencies{Config: testMonitorConfig(), Now: clock.Now})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		engine.Raise(ctx, fmt.Sprintf("q-%d", 3-i), 1, domain.SeverityInfo, "tick", nil)
		clock.Advance(1)
	}
	all := engine.All()
	require.Len(t, all, 3)
	assert.Equal(t, "q-3", all[0].QueueID)
	assert.Equal(t, "q-1", all[2].QueueID)
	assert.Empty(t, engine.List("q-9"))
}
