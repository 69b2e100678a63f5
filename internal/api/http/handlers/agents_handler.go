package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util"
)

// AgentsHandler manages agent availability.
type AgentsHandler struct {
	availability *service.AvailabilityService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(availability *service.AvailabilityService) *AgentsHandler {
	return &AgentsHandler{availability: availability}
}

// SetAvailability handles PUT /queues/:id/agents/:agentId/availability.
func (h *AgentsHandler) SetAvailability(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ack, err := h.availability.SetAgentAvailability(c.UserContext(), actor, service.AvailabilityRequest{
		QueueID:         c.Params("id"),
		AgentID:         c.Params("agentId"),
		Available:       req.Available,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"agent":   dto.AgentFromDomain(ack.Agent),
		"changed": ack.Changed,
		"status":  ack.Status,
	}})
}
