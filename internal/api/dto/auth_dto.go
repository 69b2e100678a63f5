package dto

import (
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// AgentLoginRequest payload.
type AgentLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AgentResponse is the public view of an agent.
type AgentResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Role               domain.Role        `json:"role"`
	Status             domain.AgentStatus `json:"status"`
	StatusReason       string             `json:"status_reason,omitempty"`
	CurrentTicketCount int                `json:"current_ticket_count"`
	MaxCapacity        int                `json:"max_capacity"`
	Skills             []string           `json:"skills"`
	Version            int64              `json:"version"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// AgentFromDomain maps an agent for responses.
func AgentFromDomain(a *domain.Agent) AgentResponse {
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	return AgentResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		Role:               a.Role,
		Status:             a.Status,
		StatusReason:       a.StatusReason,
		CurrentTicketCount: a.CurrentTicketCount,
		MaxCapacity:        a.MaxCapacity,
		Skills:             skills,
		Version:            a.Version,
		UpdatedAt:          a.UpdatedAt,
	}
}
