package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/auth"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// seedMemoryStore fills the in-memory store with a small demo floor so the
// API is usable without Postgres.
func seedMemoryStore(store *repository.MemoryStore, cfg config.AuthConfig, logger *zap.Logger) error {
	hash, err := auth.HashPassword(cfg.DevSeedPassword, cfg.BcryptCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	queues := []domain.Queue{{
		ID: "billing", Name: "Billing", Type: domain.QueueTypeGeneral,
		AgentIDs: []string{"agent-ada", "agent-bo", "lead-cy"}, SLATargetMinutes: 240, Active: true,
		Rules: domain.RoutingRules{MaxTicketsPerAgent: 10, AutoAssignment: true, PriorityWeighting: true},
	}, {
		ID: "vip", Name: "VIP", Type: domain.QueueTypeVIP,
		AgentIDs: []string{"lead-cy"}, SLATargetMinutes: 60, SLAWarningMinutes: 30, Active: true,
		Rules: domain.RoutingRules{MaxTicketsPerAgent: 5, SkillMatching: true},
	}}
	for _, q := range queues {
		if err := store.PutQueue(q); err != nil {
			return err
		}
	}

	agents := []domain.Agent{
		{ID: "agent-ada", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAgent, Status: domain.AgentStatusAvailable,
			CurrentTicketCount: 6, MaxCapacity: 10, Skills: []string{"billing", "refunds"},
			Stats: domain.PerformanceStats{AvgResolutionMinutes: 42, SuccessRate: 94, Satisfaction: 4.7}},
		{ID: "agent-bo", Name: "Bo", Email: "bo@example.com", Role: domain.RoleAgent, Status: domain.AgentStatusBusy,
			CurrentTicketCount: 9, MaxCapacity: 10, Skills: []string{"billing"},
			Stats: domain.PerformanceStats{AvgResolutionMinutes: 55, SuccessRate: 88, Satisfaction: 4.2}},
		{ID: "lead-cy", Name: "Cy", Email: "cy@example.com", Role: domain.RoleTeamLead, Status: domain.AgentStatusAvailable,
			CurrentTicketCount: 2, MaxCapacity: 5, Skills: []string{"vip", "escalations"},
			Stats: domain.PerformanceStats{AvgResolutionMinutes: 30, SuccessRate: 97, Satisfaction: 4.9}},
	}
	for _, a := range agents {
		a.PasswordHash = hash
		a.CreatedAt, a.UpdatedAt = now, now
		if err := store.PutAgent(a); err != nil {
			return err
		}
	}

	due := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}
	assignee := func(id string) *string { return &id }
	tickets := []domain.Ticket{
		{ID: "T-1001", QueueID: "billing", Title: "Double charge", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityHigh, DueAt: due(90 * time.Minute), AssigneeID: assignee("agent-ada"), Skills: []string{"refunds"}},
		{ID: "T-1002", QueueID: "billing", Title: "Invoice copy", Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityLow, DueAt: due(6 * time.Hour), AssigneeID: assignee("agent-bo")},
		{ID: "T-1003", QueueID: "billing", Title: "Card declined", Status: domain.TicketStatusPending, Priority: domain.TicketPriorityMedium, DueAt: due(-15 * time.Minute), AssigneeID: assignee("agent-bo")},
		{ID: "T-2001", QueueID: "vip", Title: "Account locked", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityCritical, DueAt: due(20 * time.Minute), VIPWeight: 2, Skills: []string{"vip"}},
	}
	for _, t := range tickets {
		t.CreatedAt, t.UpdatedAt = now, now
		if err := store.PutTicket(t); err != nil {
			return err
		}
	}

	logger.Warn("seeded in-memory demo data", zap.Int("queues", 2), zap.Int("agents", len(agents)), zap.Int("tickets", len(tickets)))
	return nil
}
