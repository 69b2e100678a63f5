package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
)

// FetchFailureMessage is the critical alert raised when a cycle cannot load.
const FetchFailureMessage = "failed to load queue data"

// QueueMetrics is what one refresh cycle hands the alert engine.
type QueueMetrics struct {
	Cycle       uint64
	Utilization Utilization
	Risk        BreachRisk
	// Breached lists open tickets past their due time. Ignored unless
	// TicketsKnown is set.
	Breached     []string
	TicketsKnown bool
}

// alertRing is a fixed-size FIFO; pushing onto a full ring evicts the oldest.
type alertRing struct {
	items []domain.Alert
	head  int
	size  int
}

func newAlertRing(capacity int) *alertRing {
	return &alertRing{items: make([]domain.Alert, capacity)}
}

func (r *alertRing) push(a domain.Alert) (evicted *domain.Alert) {
	capacity := len(r.items)
	if r.size == capacity {
		old := r.items[r.head]
		evicted = &old
		r.items[r.head] = a
		r.head = (r.head + 1) % capacity
		return evicted
	}
	r.items[(r.head+r.size)%capacity] = a
	r.size++
	return nil
}

// list returns entries oldest first.
func (r *alertRing) list() []domain.Alert {
	out := make([]domain.Alert, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}

// removeWhere drops matching entries, keeping order.
func (r *alertRing) removeWhere(match func(domain.Alert) bool) []domain.Alert {
	kept := r.list()
	var removed []domain.Alert
	r.head, r.size = 0, 0
	for _, a := range kept {
		if match(a) {
			removed = append(removed, a)
			continue
		}
		r.push(a)
	}
	return removed
}

type queueAlerts struct {
	ring     *alertRing
	cycle    uint64
	seen     map[string]struct{}
	breached map[string]struct{}
}

// AlertEngine turns refresh metrics into bounded, deduplicated alerts.
type AlertEngine struct {
	mu          sync.Mutex
	queues      map[string]*queueAlerts
	capacity    int
	criticalPct float64
	riskPct     float64
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// AlertEngineDependencies bundles collaborators.
type AlertEngineDependencies struct {
	Config     config.MonitorConfig
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAlertEngine creates the engine.
func NewAlertEngine(deps AlertEngineDependencies) *AlertEngine {
	capacity := deps.Config.AlertBufferSize
	if capacity <= 0 {
		capacity = 5
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AlertEngine{
		queues:      make(map[string]*queueAlerts),
		capacity:    capacity,
		criticalPct: deps.Config.HealthCriticalPct,
		riskPct:     deps.Config.BreachRiskWarningPct,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         now,
	}
}

// Evaluate raises the alerts for one cycle and returns those accepted.
func (e *AlertEngine) Evaluate(ctx context.Context, queueID string, m QueueMetrics) []domain.Alert {
	var raised []domain.Alert
	if m.Utilization.Known && m.Utilization.Pct >= e.criticalPct {
		msg := fmt.Sprintf("queue utilization at %.1f%% (critical threshold %.0f%%)", m.Utilization.Pct, e.criticalPct)
		if a, ok := e.Raise(ctx, queueID, m.Cycle, domain.SeverityCritical, msg, nil); ok {
			raised = append(raised, a)
		}
	}
	if m.Risk.Known() && m.Risk.Pct > e.riskPct {
		msg := fmt.Sprintf("SLA breach risk at %.1f%% (threshold %.0f%%)", m.Risk.Pct, e.riskPct)
		if a, ok := e.Raise(ctx, queueID, m.Cycle, domain.SeverityWarning, msg, nil); ok {
			raised = append(raised, a)
		}
	}
	if m.TicketsKnown {
		raised = append(raised, e.raiseBreaches(ctx, queueID, m.Cycle, m.Breached)...)
	}
	return raised
}

// RaiseFetchFailure records a cycle that could not load its data.
func (e *AlertEngine) RaiseFetchFailure(ctx context.Context, queueID string, cycle uint64) (domain.Alert, bool) {
	return e.Raise(ctx, queueID, cycle, domain.SeverityCritical, FetchFailureMessage, nil)
}

// Raise appends an alert unless the same severity and message was already
// raised for the queue in this cycle.
func (e *AlertEngine) Raise(ctx context.Context, queueID string, cycle uint64, severity domain.AlertSeverity, message string, ticketID *string) (domain.Alert, bool) {
	e.mu.Lock()
	q := e.queueLocked(queueID)
	if q.cycle != cycle {
		q.cycle = cycle
		q.seen = make(map[string]struct{})
	}
	key := string(severity) + "|" + message
	if _, dup := q.seen[key]; dup {
		e.mu.Unlock()
		return domain.Alert{}, false
	}
	q.seen[key] = struct{}{}

	alert := domain.Alert{
		ID:        uuid.NewString(),
		QueueID:   queueID,
		TicketID:  ticketID,
		Severity:  severity,
		Message:   message,
		Cycle:     cycle,
		CreatedAt: e.now().UTC(),
	}
	if evicted := q.ring.push(alert); evicted != nil {
		e.logger.Debug("alert evicted", zap.String("queue_id", queueID), zap.String("alert_id", evicted.ID))
	}
	e.mu.Unlock()

	e.metrics.RecordAlert(queueID, string(severity))
	e.publish(ctx, events.EventAlertRaised, alert, events.AlertPayload{Alert: alert})
	if severity == domain.SeverityCritical {
		e.publish(ctx, events.EventAlertCue, alert, events.AlertCuePayload{
			AlertID:  alert.ID,
			Severity: alert.Severity,
			Message:  alert.Message,
		})
	}
	return alert, true
}

func (e *AlertEngine) raiseBreaches(ctx context.Context, queueID string, cycle uint64, breached []string) []domain.Alert {
	e.mu.Lock()
	q := e.queueLocked(queueID)
	current := make(map[string]struct{}, len(breached))
	var fresh []string
	for _, id := range breached {
		current[id] = struct{}{}
		if _, notified := q.breached[id]; !notified {
			fresh = append(fresh, id)
		}
	}
	q.breached = current
	e.mu.Unlock()

	var raised []domain.Alert
	for _, id := range fresh {
		ticketID := id
		msg := fmt.Sprintf("ticket %s breached its SLA", ticketID)
		if a, ok := e.Raise(ctx, queueID, cycle, domain.SeverityWarning, msg, &ticketID); ok {
			raised = append(raised, a)
		}
	}
	return raised
}

// ClearTicket removes the ticket's breach alerts from the queue buffer.
func (e *AlertEngine) ClearTicket(ctx context.Context, queueID, ticketID string) []domain.Alert {
	e.mu.Lock()
	q, ok := e.queues[queueID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	removed := q.ring.removeWhere(func(a domain.Alert) bool {
		return a.TicketID != nil && *a.TicketID == ticketID
	})
	delete(q.breached, ticketID)
	e.mu.Unlock()

	for _, a := range removed {
		e.publish(ctx, events.EventAlertCleared, a, events.AlertPayload{Alert: a})
	}
	return removed
}

// Dismiss removes one alert by id.
func (e *AlertEngine) Dismiss(ctx context.Context, queueID, alertID string) error {
	e.mu.Lock()
	q, ok := e.queues[queueID]
	if !ok {
		e.mu.Unlock()
		return ErrAlertNotFound
	}
	removed := q.ring.removeWhere(func(a domain.Alert) bool { return a.ID == alertID })
	e.mu.Unlock()

	if len(removed) == 0 {
		return ErrAlertNotFound
	}
	e.publish(ctx, events.EventAlertCleared, removed[0], events.AlertPayload{Alert: removed[0]})
	return nil
}

// List returns the queue's alerts, oldest first.
func (e *AlertEngine) List(queueID string) []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, ok := e.queues[queueID]
	if !ok {
		return []domain.Alert{}
	}
	return q.ring.list()
}

// All returns every buffered alert across queues ordered by creation time.
func (e *AlertEngine) All() []domain.Alert {
	e.mu.Lock()
	out := []domain.Alert{}
	for _, q := range e.queues {
		out = append(out, q.ring.list()...)
	}
	e.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].QueueID < out[j].QueueID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (e *AlertEngine) queueLocked(queueID string) *queueAlerts {
	q, ok := e.queues[queueID]
	if !ok {
		q = &queueAlerts{
			ring:     newAlertRing(e.capacity),
			seen:     make(map[string]struct{}),
			breached: make(map[string]struct{}),
		}
		e.queues[queueID] = q
	}
	return q
}

func (e *AlertEngine) publish(ctx context.Context, eventType events.EventType, alert domain.Alert, payload any) {
	if e.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		QueueID:   alert.QueueID,
		Actor:     events.Actor{System: true},
		Timestamp: e.now().UTC(),
		Payload:   payload,
	}
	if alert.TicketID != nil {
		event.TicketID = *alert.TicketID
	}
	_ = e.dispatcher.Publish(ctx, event)
}
