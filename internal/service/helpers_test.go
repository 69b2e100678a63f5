package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/repository"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func ptrString(s string) *string {
	return &s
}

func testMonitorConfig() config.MonitorConfig {
	return config.Defaults()
}

// agentsAt returns agents whose counts sum to pct of a total capacity of 100.
func agentsAt(pct int) []domain.Agent {
	first := pct / 2
	return []domain.Agent{
		{ID: "a-1", Name: "Ada", Status: domain.AgentStatusAvailable, CurrentTicketCount: first, MaxCapacity: 50},
		{ID: "a-2", Name: "Bo", Status: domain.AgentStatusBusy, CurrentTicketCount: pct - first, MaxCapacity: 50},
	}
}

func seedQueue(t *testing.T, store *repository.MemoryStore, pct int) {
	t.Helper()
	require.NoError(t, store.PutQueue(domain.Queue{
		ID:               "q-1",
		Name:             "Billing",
		Type:             domain.QueueTypeGeneral,
		SLATargetMinutes: 240,
		Active:           true,
		AgentIDs:         []string{"a-1", "a-2"},
	}))
	for _, a := range agentsAt(pct) {
		require.NoError(t, store.PutAgent(a))
	}
}

type failingQueues struct {
	repository.QueueRepository
	err error
}

func (f failingQueues) GetByID(context.Context, string) (*domain.Queue, error) {
	return nil, f.err
}

type failingAgents struct {
	repository.AgentRepository
	err error
}

func (f failingAgents) ListByQueue(context.Context, string) ([]domain.Agent, error) {
	return nil, f.err
}

type failingTickets struct {
	repository.TicketRepository
	err error
}

func (f failingTickets) ListByQueue(context.Context, string) ([]domain.Ticket, error) {
	return nil, f.err
}
