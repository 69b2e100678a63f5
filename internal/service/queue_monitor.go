package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

const subscriberBuffer = 4

// RiskProvider supplies an externally computed breach risk for a queue.
type RiskProvider interface {
	BreachRisk(ctx context.Context, queueID string) (BreachRisk, error)
}

// QueueStatus is the composed result of one refresh cycle.
type QueueStatus struct {
	QueueID     string           `json:"queue_id"`
	QueueName   string           `json:"queue_name"`
	QueueType   domain.QueueType `json:"queue_type"`
	Cycle       uint64           `json:"cycle"`
	RefreshedAt time.Time        `json:"refreshed_at"`
	Utilization Utilization      `json:"utilization"`
	Health      HealthTier       `json:"health"`
	Trend       Trend            `json:"trend"`
	SLA         *SLASummary      `json:"sla,omitempty"`
	BreachRisk  BreachRisk       `json:"breach_risk"`
	Agents      []AgentLoad      `json:"agents"`
	Alerts      []domain.Alert   `json:"alerts"`
	// Degraded names the sources that failed while the cycle still completed.
	Degraded []string `json:"degraded,omitempty"`
	// FetchError is set when the cycle was skipped; the derived fields are
	// then those of the last successful cycle.
	FetchError string `json:"fetch_error,omitempty"`
}

type queueState struct {
	// guarded by QueueMonitor.mu
	entryID   cron.EntryID
	scheduled bool
	interval  time.Duration

	// mu serializes refresh cycles and writes for the queue.
	mu       sync.Mutex
	cycle    uint64
	prevUtil *float64

	pubMu   sync.RWMutex
	latest  *QueueStatus
	subs    map[int]chan QueueStatus
	nextSub int
}

// QueueMonitor refreshes each watched queue on its own cron entry.
type QueueMonitor struct {
	mu     sync.Mutex
	states map[string]*queueState
	cron   *cron.Cron
	group  singleflight.Group

	queues  repository.QueueRepository
	agents  repository.AgentRepository
	tickets repository.TicketRepository
	risk    RiskProvider

	capacity   CapacityTracker
	health     *QueueHealthEvaluator
	alerts     *AlertEngine
	cfg        config.MonitorConfig
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	baseCtx    context.Context
}

// MonitorDependencies bundles collaborators for the monitor.
type MonitorDependencies struct {
	Config     config.MonitorConfig
	QueueRepo  repository.QueueRepository
	AgentRepo  repository.AgentRepository
	TicketRepo repository.TicketRepository
	// Risk is optional; without it breach risk is derived from ticket due dates.
	Risk       RiskProvider
	Alerts     *AlertEngine
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewQueueMonitor builds a monitor. Call Start to begin scheduled refreshes.
func NewQueueMonitor(deps MonitorDependencies) *QueueMonitor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &QueueMonitor{
		states: make(map[string]*queueState),
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		queues:     deps.QueueRepo,
		agents:     deps.AgentRepo,
		tickets:    deps.TicketRepo,
		risk:       deps.Risk,
		health:     NewQueueHealthEvaluator(deps.Config),
		alerts:     deps.Alerts,
		cfg:        deps.Config,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
		baseCtx:    context.Background(),
	}
}

// Start begins firing scheduled refreshes.
func (m *QueueMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
	m.cron.Start()
}

// Stop halts the scheduler and waits for running refreshes or ctx.
func (m *QueueMonitor) Stop(ctx context.Context) {
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		m.logger.Warn("monitor stop timed out")
	}
}

// Watch schedules periodic refreshes for the queue at its current interval.
// Watching an already watched queue is a no-op.
func (m *QueueMonitor) Watch(queueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateLocked(queueID)
	if st.scheduled {
		return nil
	}
	if st.interval == 0 {
		st.interval = m.cfg.DefaultRefresh()
	}
	st.entryID = m.cron.Schedule(cron.Every(st.interval), m.job(queueID))
	st.scheduled = true
	m.logger.Info("queue watched", zap.String("queue_id", queueID), zap.Duration("interval", st.interval))
	return nil
}

// WatchQueue checks the queue exists and is active before watching it.
func (m *QueueMonitor) WatchQueue(ctx context.Context, queueID string) error {
	queue, err := m.queues.GetByID(ctx, queueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQueueNotFound
		}
		return err
	}
	if !queue.Active {
		return ErrQueueNotFound
	}
	return m.Watch(queueID)
}

// ActiveQueues lists the queues that can be watched.
func (m *QueueMonitor) ActiveQueues(ctx context.Context) ([]domain.Queue, error) {
	return m.queues.ListActive(ctx)
}

// Unwatch removes the queue's timer. Its last status and alerts remain readable.
func (m *QueueMonitor) Unwatch(queueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[queueID]
	if !ok || !st.scheduled {
		return ErrQueueNotWatched
	}
	m.cron.Remove(st.entryID)
	st.scheduled = false
	st.entryID = 0
	m.logger.Info("queue unwatched", zap.String("queue_id", queueID))
	return nil
}

// SetInterval replaces the queue's timer. The old entry is removed before the
// new one is added, so a queue never has two timers.
func (m *QueueMonitor) SetInterval(queueID string, seconds int) error {
	if !m.cfg.IntervalAllowed(seconds) {
		return fmt.Errorf("%w: %ds (allowed %v)", ErrInvalidInterval, seconds, m.cfg.AllowedRefreshSeconds)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[queueID]
	if !ok || !st.scheduled {
		return ErrQueueNotWatched
	}
	interval := time.Duration(seconds) * time.Second
	if st.interval == interval {
		return nil
	}
	m.cron.Remove(st.entryID)
	st.entryID = m.cron.Schedule(cron.Every(interval), m.job(queueID))
	st.interval = interval
	m.logger.Info("refresh interval changed", zap.String("queue_id", queueID), zap.Duration("interval", interval))
	return nil
}

// Interval reports the queue's refresh interval and whether it is watched.
func (m *QueueMonitor) Interval(queueID string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[queueID]
	if !ok || !st.scheduled {
		return 0, false
	}
	return st.interval, true
}

// Watched lists watched queue ids.
func (m *QueueMonitor) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, st := range m.states {
		if st.scheduled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RefreshNow runs a cycle outside the timer. Concurrent calls for the same
// queue share one cycle; cycles and writes for a queue never interleave.
func (m *QueueMonitor) RefreshNow(ctx context.Context, queueID string) (QueueStatus, error) {
	v, err, _ := m.group.Do(queueID, func() (any, error) {
		st := m.state(queueID)
		status, err := m.refreshState(ctx, queueID, st)
		if errors.Is(err, ErrQueueNotFound) {
			m.forgetIdle(queueID, st)
		}
		return status, err
	})
	status, _ := v.(QueueStatus)
	return status, err
}

func (m *QueueMonitor) refreshState(ctx context.Context, queueID string, st *queueState) (QueueStatus, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return m.refreshLocked(context.WithoutCancel(ctx), queueID, st)
}

// ApplyWrite runs write and the following reload under the queue's refresh
// lock, so no cycle can read state between the two. A failed reload does not
// fail the write; the returned status carries the fetch error instead.
func (m *QueueMonitor) ApplyWrite(ctx context.Context, queueID string, write func(context.Context) error) (*QueueStatus, error) {
	st := m.state(queueID)
	status, err := func() (QueueStatus, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		if err := write(ctx); err != nil {
			return QueueStatus{}, err
		}
		status, err := m.refreshLocked(context.WithoutCancel(ctx), queueID, st)
		if err != nil {
			m.logger.Warn("reload after write failed", zap.String("queue_id", queueID), zap.Error(err))
			if errors.Is(err, ErrQueueNotFound) {
				return QueueStatus{}, err
			}
		}
		return status, nil
	}()
	if errors.Is(err, ErrQueueNotFound) {
		m.forgetIdle(queueID, st)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Latest returns the last published status.
func (m *QueueMonitor) Latest(queueID string) (QueueStatus, bool) {
	m.mu.Lock()
	st, ok := m.states[queueID]
	m.mu.Unlock()
	if !ok {
		return QueueStatus{}, false
	}
	st.pubMu.RLock()
	defer st.pubMu.RUnlock()
	if st.latest == nil {
		return QueueStatus{}, false
	}
	return *st.latest, true
}

// Subscribe returns a channel receiving every status published for the
// queue. Sends never block: a full channel drops the update. cancel closes
// the channel.
func (m *QueueMonitor) Subscribe(queueID string) (<-chan QueueStatus, func()) {
	st := m.state(queueID)
	ch := make(chan QueueStatus, subscriberBuffer)

	st.pubMu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = ch
	if st.latest != nil {
		ch <- *st.latest
	}
	st.pubMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			st.pubMu.Lock()
			delete(st.subs, id)
			close(ch)
			st.pubMu.Unlock()
			m.forgetIdle(queueID, st)
		})
	}
	return ch, cancel
}

// SubscribeQueue is Subscribe for a queue that must exist in the store.
func (m *QueueMonitor) SubscribeQueue(ctx context.Context, queueID string) (<-chan QueueStatus, func(), error) {
	if _, err := m.queues.GetByID(ctx, queueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrQueueNotFound
		}
		return nil, nil, err
	}
	ch, cancel := m.Subscribe(queueID)
	return ch, cancel, nil
}

// Alerts exposes the engine the monitor feeds.
func (m *QueueMonitor) Alerts() *AlertEngine {
	return m.alerts
}

func (m *QueueMonitor) job(queueID string) cron.Job {
	return cron.FuncJob(func() {
		m.mu.Lock()
		ctx := m.baseCtx
		m.mu.Unlock()
		if _, err := m.RefreshNow(ctx, queueID); err != nil {
			m.logger.Warn("scheduled refresh failed", zap.String("queue_id", queueID), zap.Error(err))
		}
	})
}

func (m *QueueMonitor) state(queueID string) *queueState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(queueID)
}

// forgetIdle drops a queue's state once nothing references it: no timer, no
// subscribers and no published status.
func (m *QueueMonitor) forgetIdle(queueID string, st *queueState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[queueID] != st || st.scheduled {
		return
	}
	st.pubMu.RLock()
	idle := len(st.subs) == 0 && st.latest == nil
	st.pubMu.RUnlock()
	if idle {
		delete(m.states, queueID)
	}
}

func (m *QueueMonitor) stateLocked(queueID string) *queueState {
	st, ok := m.states[queueID]
	if !ok {
		st = &queueState{subs: make(map[int]chan QueueStatus)}
		m.states[queueID] = st
	}
	return st
}

type snapshot struct {
	queue      *domain.Queue
	agents     []domain.Agent
	tickets    []domain.Ticket
	risk       BreachRisk
	queueErr   error
	agentsErr  error
	ticketsErr error
	riskErr    error
}

// fetch loads the cycle's inputs concurrently. Every fetch records its own
// error and returns nil so one failure never cancels the others.
func (m *QueueMonitor) fetch(ctx context.Context, queueID string) snapshot {
	if timeout := m.cfg.FetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.queue, snap.queueErr = m.queues.GetByID(gctx, queueID)
		return nil
	})
	g.Go(func() error {
		snap.agents, snap.agentsErr = m.agents.ListByQueue(gctx, queueID)
		return nil
	})
	g.Go(func() error {
		snap.tickets, snap.ticketsErr = m.tickets.ListByQueue(gctx, queueID)
		return nil
	})
	if m.risk != nil {
		g.Go(func() error {
			snap.risk, snap.riskErr = m.risk.BreachRisk(gctx, queueID)
			return nil
		})
	}
	_ = g.Wait()
	return snap
}

func (m *QueueMonitor) refreshLocked(ctx context.Context, queueID string, st *queueState) (QueueStatus, error) {
	started := m.now()
	snap := m.fetch(ctx, queueID)
	if errors.Is(snap.queueErr, repository.ErrNotFound) {
		return QueueStatus{}, ErrQueueNotFound
	}

	st.cycle++
	cycle := st.cycle

	if cause := fetchFailure(snap); cause != nil {
		return m.failCycle(ctx, queueID, st, cycle, cause)
	}

	queue := snap.queue
	window := WarningWindowFor(queue, m.cfg.SLAWarningWindow())
	status := QueueStatus{
		QueueID:     queue.ID,
		QueueName:   queue.Name,
		QueueType:   queue.Type,
		Cycle:       cycle,
		RefreshedAt: started.UTC(),
		Agents:      []AgentLoad{},
	}

	var tickets []domain.Ticket
	if snap.ticketsErr == nil {
		tickets = snap.tickets
	} else {
		status.Degraded = append(status.Degraded, "tickets")
		m.logger.Warn("ticket fetch failed", zap.String("queue_id", queueID), zap.Error(snap.ticketsErr))
	}

	switch {
	case snap.agentsErr != nil:
		status.Degraded = append(status.Degraded, "agents")
		status.Utilization = m.capacity.ComputeUtilization(nil, tickets)
		m.logger.Warn("agent fetch failed", zap.String("queue_id", queueID), zap.Error(snap.agentsErr))
	case snap.ticketsErr != nil:
		status.Utilization = m.capacity.ComputeAgentUtilization(snap.agents)
		status.Agents = m.capacity.AgentCapacities(snap.agents)
	default:
		status.Utilization = m.capacity.ComputeUtilization(snap.agents, tickets)
		status.Agents = m.capacity.AgentLoads(snap.agents, tickets)
	}

	report := m.health.EvaluateUtilization(status.Utilization, st.prevUtil)
	status.Health, status.Trend = report.Health, report.Trend
	if status.Utilization.Known {
		pct := status.Utilization.Pct
		st.prevUtil = &pct
	}

	var agg SLAAggregate
	if snap.ticketsErr == nil {
		agg = AggregateSLA(tickets, started, window)
		summary := agg.Summary
		status.SLA = &summary
	}
	switch {
	case m.risk != nil && snap.riskErr == nil:
		status.BreachRisk = snap.risk
		status.BreachRisk.Source = RiskExternal
	case snap.ticketsErr == nil:
		status.BreachRisk = agg.Risk
	default:
		status.BreachRisk = BreachRisk{Source: RiskUnknown}
	}
	if m.risk != nil && snap.riskErr != nil {
		status.Degraded = append(status.Degraded, "risk")
		m.logger.Warn("risk fetch failed", zap.String("queue_id", queueID), zap.Error(snap.riskErr))
	}

	if m.alerts != nil {
		m.alerts.Evaluate(ctx, queueID, QueueMetrics{
			Cycle:        cycle,
			Utilization:  status.Utilization,
			Risk:         status.BreachRisk,
			Breached:     agg.Breached,
			TicketsKnown: snap.ticketsErr == nil,
		})
		status.Alerts = m.alerts.List(queueID)
	}

	m.metrics.RecordRefresh(queueID, status.Utilization.Pct, status.Utilization.Known, status.Health.Rank(), m.now().Sub(started))
	m.publish(ctx, st, status)
	return status, nil
}

func fetchFailure(snap snapshot) error {
	if snap.queueErr != nil {
		return snap.queueErr
	}
	if snap.agentsErr != nil && snap.ticketsErr != nil {
		return errors.Join(snap.agentsErr, snap.ticketsErr)
	}
	return nil
}

// failCycle skips derived computation, raises the critical fetch alert and
// republishes the previous status with the error attached.
func (m *QueueMonitor) failCycle(ctx context.Context, queueID string, st *queueState, cycle uint64, cause error) (QueueStatus, error) {
	m.logger.Error("queue refresh failed", zap.String("queue_id", queueID), zap.Uint64("cycle", cycle), zap.Error(cause))
	m.metrics.RecordFetchFailure(queueID)

	st.pubMu.RLock()
	status := QueueStatus{QueueID: queueID, Health: HealthUnknown, Trend: TrendStable, BreachRisk: BreachRisk{Source: RiskUnknown}, Agents: []AgentLoad{}}
	if st.latest != nil {
		status = *st.latest
	}
	st.pubMu.RUnlock()

	status.Cycle = cycle
	status.Degraded = nil
	status.FetchError = cause.Error()
	if m.alerts != nil {
		m.alerts.RaiseFetchFailure(ctx, queueID, cycle)
		status.Alerts = m.alerts.List(queueID)
	}
	m.publish(ctx, st, status)
	return status, fmt.Errorf("%w: %v", ErrFetchFailure, cause)
}

func (m *QueueMonitor) publish(ctx context.Context, st *queueState, status QueueStatus) {
	st.pubMu.Lock()
	latest := status
	st.latest = &latest
	for _, ch := range st.subs {
		select {
		case ch <- status:
		default:
		}
	}
	st.pubMu.Unlock()

	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventQueueRefreshed,
		QueueID:   status.QueueID,
		Actor:     events.Actor{System: true},
		Timestamp: m.now().UTC(),
		Payload:   status,
	})
}
