package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans engine events out to subscribed sinks.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type syncDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
	now      func() time.Time
}

// NewInMemoryDispatcher returns a dispatcher that runs handlers inline on the
// publishing goroutine, in subscription order.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &syncDispatcher{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
		now:      time.Now,
	}
}

// Publish stamps a missing ID and timestamp, then delivers the event to every
// handler for its type. Handler errors and panics are logged; delivery to the
// rest continues and Publish itself never fails.
func (d *syncDispatcher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	d.mu.RLock()
	targets := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	for i, handler := range targets {
		if err := d.deliver(ctx, handler, event); err != nil {
			d.logger.Warn("event sink failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.String("queue_id", event.QueueID),
				zap.Int("sink", i),
				zap.Error(err))
		}
	}
	return nil
}

func (d *syncDispatcher) deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe appends a handler for eventType.
func (d *syncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	d.mu.Unlock()
}
