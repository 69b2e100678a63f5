package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// AvailabilityRequest toggles an agent within a queue.
type AvailabilityRequest struct {
	QueueID   string
	AgentID   string
	Available bool
	Reason    string
	// ExpectedVersion guards against a concurrent write; 0 skips the check.
	ExpectedVersion int64
}

// AvailabilityAck is returned once the write and the reload completed.
type AvailabilityAck struct {
	Agent   *domain.Agent
	Changed bool
	// Status is the queue status reloaded after the write, nil if the reload failed.
	Status *QueueStatus
}

// AvailabilityService writes agent availability through the queue monitor.
type AvailabilityService struct {
	queues     repository.QueueRepository
	agents     repository.AgentRepository
	monitor    *QueueMonitor
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AvailabilityDependencies bundles collaborators.
type AvailabilityDependencies struct {
	QueueRepo  repository.QueueRepository
	AgentRepo  repository.AgentRepository
	Monitor    *QueueMonitor
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAvailabilityService creates the service.
func NewAvailabilityService(deps AvailabilityDependencies) *AvailabilityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		queues:     deps.QueueRepo,
		agents:     deps.AgentRepo,
		monitor:    deps.Monitor,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// SetAgentAvailability maps available=true to available and false to away.
// Repeating the current state is acknowledged without a write.
func (s *AvailabilityService) SetAgentAvailability(ctx context.Context, actor Actor, req AvailabilityRequest) (*AvailabilityAck, error) {
	if actor.ID != req.AgentID && !actor.Privileged() {
		return nil, ErrForbidden
	}

	queue, err := s.queues.GetByID(ctx, req.QueueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}
	if !containsID(queue.AgentIDs, req.AgentID) {
		return nil, ErrAgentNotInQueue
	}

	status := domain.AgentStatusAway
	reason := strings.TrimSpace(req.Reason)
	if req.Available {
		status = domain.AgentStatusAvailable
		reason = ""
	}

	var before, after *domain.Agent
	reloaded, err := s.monitor.ApplyWrite(ctx, req.QueueID, func(ctx context.Context) error {
		current, err := s.agents.GetByID(ctx, req.AgentID)
		if err != nil {
			return err
		}
		before = current
		after, err = s.agents.SetAvailability(ctx, req.AgentID, status, reason, req.ExpectedVersion)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAgentNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			s.metrics.RecordAvailabilityWrite("stale")
			return nil, ErrStaleWrite
		}
		s.metrics.RecordAvailabilityWrite("error")
		return nil, err
	}

	changed := before.Status != after.Status || before.StatusReason != after.StatusReason
	if !changed {
		s.metrics.RecordAvailabilityWrite("noop")
		return &AvailabilityAck{Agent: after, Status: reloaded}, nil
	}
	s.metrics.RecordAvailabilityWrite("applied")
	s.logger.Info("agent availability changed",
		zap.String("agent_id", after.ID),
		zap.String("queue_id", req.QueueID),
		zap.String("status", string(after.Status)))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAgentAvailabilityChanged,
			QueueID:   req.QueueID,
			Actor:     agentActor(actor.ID),
			Timestamp: time.Now().UTC(),
			Payload: events.AgentAvailabilityChangedPayload{
				AgentID:   after.ID,
				OldStatus: before.Status,
				NewStatus: after.Status,
				Reason:    after.StatusReason,
			},
		})
	}
	return &AvailabilityAck{Agent: after, Changed: true, Status: reloaded}, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
