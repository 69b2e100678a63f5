package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role domain.Role
}

// Privileged reports whether the actor may act on behalf of other agents.
func (a Actor) Privileged() bool {
	return a.Role == domain.RoleTeamLead || a.Role == domain.RoleAdmin
}

// TicketService applies guarded status transitions to stored tickets.
type TicketService struct {
	tickets    repository.TicketRepository
	queues     repository.QueueRepository
	activity   repository.ActivityRepository
	guard      *StatusTransitionGuard
	alerts     *AlertEngine
	monitor    *QueueMonitor
	slaWindow  time.Duration
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	Config       config.MonitorConfig
	TicketRepo   repository.TicketRepository
	QueueRepo    repository.QueueRepository
	ActivityRepo repository.ActivityRepository
	Guard        *StatusTransitionGuard
	Alerts       *AlertEngine
	// Monitor, when set, serializes status writes with the queue's refresh cycles.
	Monitor    *QueueMonitor
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketTransitions is a ticket with the moves available from its status.
type TicketTransitions struct {
	Ticket      *domain.Ticket
	SLA         domain.SLAStatus
	Transitions []StatusTransition
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	guard := deps.Guard
	if guard == nil {
		guard = NewStatusTransitionGuard(deps.Config.StrictPreconditions)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		queues:     deps.QueueRepo,
		activity:   deps.ActivityRepo,
		guard:      guard,
		alerts:     deps.Alerts,
		monitor:    deps.Monitor,
		slaWindow:  deps.Config.SLAWarningWindow(),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// ApplyStatusTransition runs the guard and persists the result. Breach
// alerts for the ticket are cleared when it reaches resolved or closed; with a
// monitor configured the write and the clearing run under the queue's refresh
// lock, followed by a reload.
func (s *TicketService) ApplyStatusTransition(ctx context.Context, actor Actor, ticketID string, req TransitionRequest) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	updated, _, err := s.guard.Attempt(*ticket, req, now)
	if err != nil {
		s.metrics.RecordTransition(string(ticket.Status), string(req.Target), "rejected")
		return nil, err
	}

	persist := func(ctx context.Context) error {
		if err := s.tickets.UpdateStatus(ctx, &updated, ticket.UpdatedAt); err != nil {
			return err
		}
		if updated.Status.Terminal() && s.alerts != nil {
			s.alerts.ClearTicket(ctx, updated.QueueID, updated.ID)
		}
		return nil
	}
	if s.monitor != nil {
		_, err = s.monitor.ApplyWrite(ctx, updated.QueueID, persist)
	} else {
		err = persist(ctx)
	}
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.RecordTransition(string(ticket.Status), string(req.Target), "stale")
			return nil, ErrStaleWrite
		}
		return nil, err
	}
	s.metrics.RecordTransition(string(ticket.Status), string(updated.Status), "applied")

	if err := s.recordStatusChange(ctx, actor, ticket, &updated, req.Comment); err != nil {
		s.logger.Error("record status change failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		QueueID:  updated.QueueID,
		TicketID: updated.ID,
		Actor:    agentActor(actor.ID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: updated.Status,
			Comment:   req.Comment,
		},
	})
	return &updated, nil
}

// AvailableTransitions returns the ticket, its live SLA and the moves open to it.
func (s *TicketService) AvailableTransitions(ctx context.Context, ticketID string) (*TicketTransitions, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	sla, err := s.slaFor(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return &TicketTransitions{
		Ticket:      ticket,
		SLA:         sla,
		Transitions: s.guard.Available(ticket.Status),
	}, nil
}

// TicketSLA classifies the ticket against its queue's warning window. Tickets
// that are resolved or closed no longer carry an SLA.
func (s *TicketService) TicketSLA(ctx context.Context, ticketID string) (domain.SLAStatus, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	return s.slaFor(ctx, ticket)
}

// ListActivity returns the ticket's audit trail.
func (s *TicketService) ListActivity(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.activity.ListByTicket(ctx, ticketID, limit, offset)
}

func (s *TicketService) slaFor(ctx context.Context, ticket *domain.Ticket) (domain.SLAStatus, error) {
	if !ticket.IsOpen() {
		return domain.SLAStatus{Tier: domain.SLANone}, nil
	}
	queue, err := s.queues.GetByID(ctx, ticket.QueueID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.SLAStatus{}, err
	}
	return ClassifySLA(ticket.DueAt, s.now(), WarningWindowFor(queue, s.slaWindow)), nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) recordStatusChange(ctx context.Context, actor Actor, before, after *domain.Ticket, comment string) error {
	if s.activity == nil {
		return nil
	}
	entry := &domain.TicketActivity{
		TicketID: after.ID,
		Type:     domain.ActivityStatusChange,
		OldValue: map[string]any{
			"status": before.Status,
		},
		NewValue: map[string]any{
			"status": after.Status,
		},
		Comment: comment,
	}
	if actor.ID != "" {
		actorID := actor.ID
		entry.ActorID = &actorID
	}
	return s.activity.Create(ctx, entry)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func agentActor(agentID string) events.Actor {
	if agentID == "" {
		return events.Actor{System: true}
	}
	return events.Actor{AgentID: &agentID}
}
