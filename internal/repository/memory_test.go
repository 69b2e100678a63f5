package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/queue-engine/internal/domain"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.PutQueue(domain.Queue{ID: "q-1", Name: "Billing", Type: domain.QueueTypeGeneral, SLATargetMinutes: 240, Active: true, AgentIDs: []string{"a-2", "a-1"}}))
	require.NoError(t, store.PutQueue(domain.Queue{ID: "q-2", Name: "Archive", Type: domain.QueueTypeGeneral, SLATargetMinutes: 240}))
	require.NoError(t, store.PutAgent(domain.Agent{ID: "a-1", Email: "one@example.com", Status: domain.AgentStatusAvailable, MaxCapacity: 5}))
	require.NoError(t, store.PutAgent(domain.Agent{ID: "a-2", Email: "two@example.com", Status: domain.AgentStatusBusy, MaxCapacity: 5}))
	require.NoError(t, store.PutTicket(domain.Ticket{ID: "t-1", QueueID: "q-1", Status: domain.TicketStatusOpen}))
	require.NoError(t, store.PutTicket(domain.Ticket{ID: "t-2", QueueID: "q-1", Status: domain.TicketStatusClosed, ResolutionNote: "done"}))
	return store
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("queues", func(t *testing.T) {
		store := seedStore(t)
		q, err := store.Queues().GetByID(ctx, "q-1")
		require.NoError(t, err)
		assert.Equal(t, "Billing", q.Name)

		active, err := store.Queues().ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "q-1", active[0].ID)

		_, err = store.Queues().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("agents by queue sorted by id", func(t *testing.T) {
		store := seedStore(t)
		agents, err := store.Agents().ListByQueue(ctx, "q-1")
		require.NoError(t, err)
		require.Len(t, agents, 2)
		assert.Equal(t, "a-1", agents[0].ID)
		assert.Equal(t, "a-2", agents[1].ID)

		byEmail, err := store.Agents().GetByEmail(ctx, "two@example.com")
		require.NoError(t, err)
		assert.Equal(t, "a-2", byEmail.ID)
	})

	t.Run("set availability bumps version once", func(t *testing.T) {
		store := seedStore(t)
		agent, err := store.Agents().SetAvailability(ctx, "a-1", domain.AgentStatusAway, "lunch", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), agent.Version)

		again, err := store.Agents().SetAvailability(ctx, "a-1", domain.AgentStatusAway, "lunch", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), again.Version)

		_, err = store.Agents().SetAvailability(ctx, "a-1", domain.AgentStatusAvailable, "", 1)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("tickets skip closed and guard updated_at", func(t *testing.T) {
		store := seedStore(t)
		tickets, err := store.Tickets().ListByQueue(ctx, "q-1")
		require.NoError(t, err)
		require.Len(t, tickets, 1)

		ticket := tickets[0]
		stamp := ticket.UpdatedAt
		ticket.Status = domain.TicketStatusInProgress
		require.NoError(t, store.Tickets().UpdateStatus(ctx, &ticket, stamp))
		assert.True(t, ticket.UpdatedAt.After(stamp))

		ticket.Status = domain.TicketStatusPending
		assert.ErrorIs(t, store.Tickets().UpdateStatus(ctx, &ticket, stamp), ErrVersionConflict)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		store := seedStore(t)
		q, err := store.Queues().GetByID(ctx, "q-1")
		require.NoError(t, err)
		q.AgentIDs[0] = "mutated"

		again, err := store.Queues().GetByID(ctx, "q-1")
		require.NoError(t, err)
		assert.Equal(t, "a-2", again.AgentIDs[0])
	})

	t.Run("activity paging", func(t *testing.T) {
		store := seedStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Activity().Create(ctx, &domain.TicketActivity{TicketID: "t-1", Type: domain.ActivityStatusChange}))
		}
		page, err := store.Activity().ListByTicket(ctx, "t-1", 2, 1)
		require.NoError(t, err)
		assert.Len(t, page, 2)

		empty, err := store.Activity().ListByTicket(ctx, "t-1", 2, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestMemoryStoreRejectsInvalidRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.PutQueue(domain.Queue{ID: "q-bad", Name: "Broken", Type: domain.QueueTypeGeneral})
	assert.Error(t, err)
	_, err = store.Queues().GetByID(ctx, "q-bad")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.PutAgent(domain.Agent{ID: "a-bad", Status: domain.AgentStatusAvailable, CurrentTicketCount: domain.HardTicketCeiling + 1, MaxCapacity: 10})
	assert.Error(t, err)
	_, err = store.Agents().GetByID(ctx, "a-bad")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.PutTicket(domain.Ticket{ID: "t-bad", QueueID: "q-1", Status: domain.TicketStatusResolved})
	assert.Error(t, err)
	_, err = store.Tickets().GetByID(ctx, "t-bad")
	assert.ErrorIs(t, err, ErrNotFound)
}
