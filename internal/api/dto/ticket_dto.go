package dto

import (
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// TransitionRequest payload for POST /tickets/:id/status.
type TransitionRequest struct {
	Status       domain.TicketStatus `json:"status"`
	Comment      string              `json:"comment"`
	Acknowledged []string            `json:"acknowledged"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID             string                `json:"id"`
	ExternalKey    string                `json:"external_key,omitempty"`
	QueueID        string                `json:"queue_id"`
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	DueAt          *time.Time            `json:"due_at,omitempty"`
	AssigneeID     *string               `json:"assignee_id,omitempty"`
	VIPWeight      float64               `json:"vip_weight,omitempty"`
	ResolutionNote string                `json:"resolution_note,omitempty"`
	SLA            *domain.SLAStatus     `json:"sla,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ClosedAt       *time.Time            `json:"closed_at,omitempty"`
}

// TicketFromDomain maps a ticket for responses.
func TicketFromDomain(t *domain.Ticket, sla *domain.SLAStatus) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		ExternalKey:    t.ExternalKey,
		QueueID:        t.QueueID,
		Title:          t.Title,
		Status:         t.Status,
		Priority:       t.Priority,
		DueAt:          t.DueAt,
		AssigneeID:     t.AssigneeID,
		VIPWeight:      t.VIPWeight,
		ResolutionNote: t.ResolutionNote,
		SLA:            sla,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		ClosedAt:       t.ClosedAt,
	}
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID        string              `json:"id"`
	Type      domain.ActivityType `json:"type"`
	ActorID   *string             `json:"actor_id,omitempty"`
	OldValue  map[string]any      `json:"old_value,omitempty"`
	NewValue  map[string]any      `json:"new_value,omitempty"`
	Comment   string              `json:"comment,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// ActivityFromDomain maps activity entries for responses.
func ActivityFromDomain(entries []domain.TicketActivity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorID,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
