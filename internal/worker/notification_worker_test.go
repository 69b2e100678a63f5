package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

type countingDispatcher struct {
	subscribed map[events.EventType]int
}

func (d *countingDispatcher) Publish(context.Context, events.Event) error { return nil }

func (d *countingDispatcher) Subscribe(eventType events.EventType, _ events.EventHandler) {
	d.subscribed[eventType]++
}

func TestNotificationWorkerWithoutOutlets(t *testing.T) {
	dispatcher := &countingDispatcher{subscribed: map[events.EventType]int{}}
	cfg := &config.Config{Monitor: config.Defaults()}

	w := NewNotificationWorker(dispatcher, nil, cfg, zap.NewNop())
	require.NotNil(t, w)
	assert.Nil(t, w.kafka)

	w.Start()
	assert.Equal(t, 1, dispatcher.subscribed[events.EventAlertRaised])
	assert.Equal(t, 1, dispatcher.subscribed[events.EventQueueRefreshed])
	assert.NoError(t, w.Stop())
}

func TestNotificationWorkerDeliversThroughDispatcher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	w := NewNotificationWorker(dispatcher, nil, &config.Config{}, nil)
	w.Start()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventAlertRaised,
		Payload: domain.Alert{ID: "al-1", QueueID: "q-1", Severity: domain.SeverityCritical},
	})
	assert.NoError(t, err)

	var nilWorker *NotificationWorker
	nilWorker.Start()
	assert.NoError(t, nilWorker.Stop())
}
