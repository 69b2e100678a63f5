package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// MemoryStore is an in-memory backing store used when no database is
// configured and in tests. Each repository view shares the same lock.
type MemoryStore struct {
	mu       sync.RWMutex
	queues   map[string]*domain.Queue
	agents   map[string]*domain.Agent
	tickets  map[string]*domain.Ticket
	activity map[string][]domain.TicketActivity
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues:   make(map[string]*domain.Queue),
		agents:   make(map[string]*domain.Agent),
		tickets:  make(map[string]*domain.Ticket),
		activity: make(map[string][]domain.TicketActivity),
	}
}

// PutQueue inserts or replaces a queue.
func (s *MemoryStore) PutQueue(q domain.Queue) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("queue %s: %w", q.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	stored := cloneQueue(q)
	s.queues[q.ID] = &stored
	return nil
}

// PutAgent inserts or replaces an agent. A zero version starts at 1.
func (s *MemoryStore) PutAgent(a domain.Agent) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("agent %s: %w", a.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.Version == 0 {
		a.Version = 1
	}
	a.UpdatedAt = now
	stored := cloneAgent(a)
	s.agents[a.ID] = &stored
	return nil
}

// PutTicket inserts or replaces a ticket.
func (s *MemoryStore) PutTicket(t domain.Ticket) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("ticket %s: %w", t.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	stored := cloneTicket(t)
	s.tickets[t.ID] = &stored
	return nil
}

// Queues returns the queue repository view.
func (s *MemoryStore) Queues() QueueRepository { return memoryQueues{s} }

// Agents returns the agent repository view.
func (s *MemoryStore) Agents() AgentRepository { return memoryAgents{s} }

// Tickets returns the ticket repository view.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Activity returns the activity repository view.
func (s *MemoryStore) Activity() ActivityRepository { return memoryActivity{s} }

type memoryQueues struct{ s *MemoryStore }

func (r memoryQueues) GetByID(ctx context.Context, id string) (*domain.Queue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.queues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneQueue(*q)
	return &out, nil
}

func (r memoryQueues) ListActive(ctx context.Context) ([]domain.Queue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Queue
	for _, q := range r.s.queues {
		if q.Active {
			out = append(out, cloneQueue(*q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memoryAgents struct{ s *MemoryStore }

func (r memoryAgents) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAgent(*a)
	return &out, nil
}

func (r memoryAgents) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.agents {
		if a.Email == email {
			out := cloneAgent(*a)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryAgents) ListByQueue(ctx context.Context, queueID string) ([]domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.queues[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	out := []domain.Agent{}
	for _, id := range q.AgentIDs {
		if a, ok := r.s.agents[id]; ok {
			out = append(out, cloneAgent(*a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryAgents) SetAvailability(ctx context.Context, agentID string, status domain.AgentStatus, reason string, expectedVersion int64) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	if expectedVersion != 0 && a.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	if a.Status != status || a.StatusReason != reason {
		a.Status = status
		a.StatusReason = reason
		a.Version++
		a.UpdatedAt = time.Now().UTC()
	}
	out := cloneAgent(*a)
	return &out, nil
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTicket(*t)
	return &out, nil
}

func (r memoryTickets) ListByQueue(ctx context.Context, queueID string) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if t.QueueID == queueID && t.Status != domain.TicketStatusClosed {
			out = append(out, cloneTicket(*t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryTickets) UpdateStatus(ctx context.Context, ticket *domain.Ticket, expectedUpdatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return ErrVersionConflict
	}
	updated := time.Now().UTC()
	if !updated.After(stored.UpdatedAt) {
		updated = stored.UpdatedAt.Add(time.Microsecond)
	}
	stored.Status = ticket.Status
	stored.ResolutionNote = ticket.ResolutionNote
	stored.ClosedAt = ticket.ClosedAt
	stored.UpdatedAt = updated
	ticket.UpdatedAt = updated
	return nil
}

type memoryActivity struct{ s *MemoryStore }

func (r memoryActivity) Create(ctx context.Context, activity *domain.TicketActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	activity.ID = uuid.NewString()
	activity.CreatedAt = time.Now().UTC()
	r.s.activity[activity.TicketID] = append(r.s.activity[activity.TicketID], *activity)
	return nil
}

func (r memoryActivity) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	entries := r.s.activity[ticketID]
	if offset >= len(entries) {
		return []domain.TicketActivity{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return append([]domain.TicketActivity{}, entries[offset:end]...), nil
}

func cloneQueue(q domain.Queue) domain.Queue {
	q.AgentIDs = append([]string(nil), q.AgentIDs...)
	return q
}

func cloneAgent(a domain.Agent) domain.Agent {
	a.Skills = append([]string(nil), a.Skills...)
	return a
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Skills = append([]string(nil), t.Skills...)
	if t.DueAt != nil {
		due := *t.DueAt
		t.DueAt = &due
	}
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		t.AssigneeID = &id
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		t.ClosedAt = &closed
	}
	return t
}
