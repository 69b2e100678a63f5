package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
)

func newAvailabilityFixture(t *testing.T) (*monitorFixture, *AvailabilityService) {
	t.Helper()
	f := newMonitorFixture(t, 50, nil)
	require.NoError(t, f.store.PutAgent(domain.Agent{ID: "a-3", Name: "Cy", Status: domain.AgentStatusAvailable, MaxCapacity: 10}))
	svc := NewAvailabilityService(AvailabilityDependencies{
		QueueRepo:  f.store.Queues(),
		AgentRepo:  f.store.Agents(),
		Monitor:    f.monitor,
		Dispatcher: f.dispatcher,
	})
	return f, svc
}

func TestSetAgentAvailabilityWritesAndReloads(t *testing.T) {
	f, svc := newAvailabilityFixture(t)
	ctx := context.Background()
	self := Actor{ID: "a-1", Role: domain.RoleAgent}

	ack, err := svc.SetAgentAvailability(ctx, self, AvailabilityRequest{QueueID: "q-1", AgentID: "a-1", Available: false, Reason: " lunch "})
	require.NoError(t, err)
	assert.True(t, ack.Changed)
	assert.Equal(t, domain.AgentStatusAway, ack.Agent.Status)
	assert.Equal(t, "lunch", ack.Agent.StatusReason)
	assert.Equal(t, int64(2), ack.Agent.Version)
	require.NotNil(t, ack.Status)
	assert.Equal(t, 0, ack.Status.Utilization.AvailableAgents)

	changed := f.dispatcher.ofType(events.EventAgentAvailabilityChanged)
	require.Len(t, changed, 1)
	payload := changed[0].Payload.(events.AgentAvailabilityChangedPayload)
	assert.Equal(t, domain.AgentStatusAvailable, payload.OldStatus)
	assert.Equal(t, domain.AgentStatusAway, payload.NewStatus)

	ack, err = svc.SetAgentAvailability(ctx, self, AvailabilityRequest{QueueID: "q-1", AgentID: "a-1", Available: true, Reason: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAvailable, ack.Agent.Status)
	assert.Empty(t, ack.Agent.StatusReason)
}

func TestSetAgentAvailabilityRepeatIsNoop(t *testing.T) {
	f, svc := newAvailabilityFixture(t)
	ctx := context.Background()

	ack, err := svc.SetAgentAvailability(ctx, Actor{ID: "a-1"}, AvailabilityRequest{QueueID: "q-1", AgentID: "a-1", Available: true})
	require.NoError(t, err)
	assert.False(t, ack.Changed)
	assert.Equal(t, int64(1), ack.Agent.Version)
	assert.Empty(t, f.dispatcher.ofType(events.EventAgentAvailabilityChanged))
}

func TestSetAgentAvailabilityAuthorization(t *testing.T) {
	_, svc := newAvailabilityFixture(t)
	ctx := context.Background()
	req := AvailabilityRequest{QueueID: "q-1", AgentID: "a-2", Available: false}

	_, err := svc.SetAgentAvailability(ctx, Actor{ID: "a-1", Role: domain.RoleAgent}, req)
	assert.ErrorIs(t, err, ErrForbidden)

	ack, err := svc.SetAgentAvailability(ctx, Actor{ID: "lead", Role: domain.RoleTeamLead}, req)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusAway, ack.Agent.Status)
}

func TestSetAgentAvailabilityValidation(t *testing.T) {
	_, svc := newAvailabilityFixture(t)
	ctx := context.Background()
	admin := Actor{ID: "root", Role: domain.RoleAdmin}

	_, err := svc.SetAgentAvailability(ctx, admin, AvailabilityRequest{QueueID: "q-1", AgentID: "a-3"})
	assert.ErrorIs(t, err, ErrAgentNotInQueue)

	_, err = svc.SetAgentAvailability(ctx, admin, AvailabilityRequest{QueueID: "q-9", AgentID: "a-1"})
	assert.ErrorIs(t, err, ErrQueueNotFound)

	_, err = svc.SetAgentAvailability(ctx, admin, AvailabilityRequest{QueueID: "q-1", AgentID: "a-1", ExpectedVersion: 7})
	assert.ErrorIs(t, err, ErrStaleWrite)
}
