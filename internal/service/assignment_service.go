package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// AssignmentService resolves tickets and queue members for the recommender.
type AssignmentService struct {
	tickets     repository.TicketRepository
	agents      repository.AgentRepository
	recommender *AssignmentRecommender
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	AgentRepo   repository.AgentRepository
	Recommender *AssignmentRecommender
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		agents:      deps.AgentRepo,
		recommender: deps.Recommender,
	}
}

// RecommendForTicket ranks the members of the ticket's queue.
func (s *AssignmentService) RecommendForTicket(ctx context.Context, ticketID string) (*domain.Ticket, []Recommendation, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrTicketNotFound
		}
		return nil, nil, err
	}
	if !ticket.IsOpen() {
		return ticket, []Recommendation{}, nil
	}
	agents, err := s.agents.ListByQueue(ctx, ticket.QueueID)
	if err != nil {
		return nil, nil, fmt.Errorf("list queue agents: %w", err)
	}
	return ticket, s.recommender.Recommend(ctx, *ticket, agents), nil
}
