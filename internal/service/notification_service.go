package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

// StatusPublisher fans refreshed queue status out to external subscribers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status QueueStatus) error
	PublishEvent(ctx context.Context, event events.Event) error
}

// AlertSink receives raised and cleared alerts.
type AlertSink interface {
	PublishAlert(ctx context.Context, eventType events.EventType, alert domain.Alert) error
}

// NotificationService forwards engine events to the configured outlets.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	publisher  StatusPublisher
	sinks      []AlertSink
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, publisher StatusPublisher, sinks ...AlertSink) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		publisher:  publisher,
		sinks:      sinks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventQueueRefreshed, n.handleQueueRefreshed)
	n.dispatcher.Subscribe(events.EventAlertRaised, n.handleAlert)
	n.dispatcher.Subscribe(events.EventAlertCleared, n.handleAlert)
	n.dispatcher.Subscribe(events.EventAlertCue, n.handleForward)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleForward)
	n.dispatcher.Subscribe(events.EventAgentAvailabilityChanged, n.handleForward)
}

func (n *NotificationService) handleQueueRefreshed(ctx context.Context, event events.Event) error {
	status, ok := event.Payload.(QueueStatus)
	if !ok || n.publisher == nil {
		return nil
	}
	return n.publisher.PublishStatus(ctx, status)
}

func (n *NotificationService) handleAlert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AlertPayload)
	if !ok {
		return nil
	}
	n.logger.Info("alert",
		zap.String("event_type", string(event.Type)),
		zap.String("queue_id", payload.Alert.QueueID),
		zap.String("severity", string(payload.Alert.Severity)),
		zap.String("message", payload.Alert.Message))

	var firstErr error
	for _, sink := range n.sinks {
		if err := sink.PublishAlert(ctx, event.Type, payload.Alert); err != nil {
			n.logger.Warn("alert sink failed", zap.String("alert_id", payload.Alert.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *NotificationService) handleForward(ctx context.Context, event events.Event) error {
	n.logger.Debug("forward event",
		zap.String("event_type", string(event.Type)),
		zap.String("queue_id", event.QueueID),
		zap.String("ticket_id", event.TicketID))
	if n.publisher == nil {
		return nil
	}
	return n.publisher.PublishEvent(ctx, event)
}
