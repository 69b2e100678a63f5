package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

type capturePublisher struct {
	mu       sync.Mutex
	statuses []QueueStatus
	events   []events.Event
}

func (p *capturePublisher) PublishStatus(_ context.Context, status QueueStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
	return nil
}

func (p *capturePublisher) PublishEvent(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type captureSink struct {
	mu    sync.Mutex
	types []events.EventType
	err   error
}

func (s *captureSink) PublishAlert(_ context.Context, eventType events.EventType, _ domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, eventType)
	return s.err
}

func TestNotificationServiceFansOut(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	publisher := &capturePublisher{}
	failing := &captureSink{err: errors.New("broker down")}
	healthy := &captureSink{}
	NewNotificationService(dispatcher, zap.NewNop(), publisher, failing, healthy).RegisterHandlers()

	clock := newFakeClock()
	engine := NewAlertEngine(AlertEngineDependencies{Config: testMonitorConfig(), Dispatcher: dispatcher, Now: clock.Now})
	ctx := context.Background()

	alert, ok := engine.Raise(ctx, "q-1", 1, domain.SeverityCritical, "queue on fire", nil)
	require.True(t, ok)
	require.NoError(t, engine.Dismiss(ctx, "q-1", alert.ID))

	// a failing sink does not starve the next one
	assert.Equal(t, []events.EventType{events.EventAlertRaised, events.EventAlertCleared}, healthy.types)
	assert.Len(t, failing.types, 2)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.EventAlertCue, publisher.events[0].Type)

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventQueueRefreshed, Payload: QueueStatus{QueueID: "q-1", Cycle: 3}}))
	require.Len(t, publisher.statuses, 1)
	assert.Equal(t, uint64(3), publisher.statuses[0].Cycle)
}

func TestNotificationServiceWithoutPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewNotificationService(dispatcher, nil, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventQueueRefreshed, Payload: QueueStatus{}})
	assert.NoError(t, err)
	err = dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketStatusChanged})
	assert.NoError(t, err)
}
