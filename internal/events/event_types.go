package events

import (
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQueueRefreshed           EventType = "queue_refreshed"
	EventAlertRaised              EventType = "alert_raised"
	EventAlertCue                 EventType = "alert_cue"
	EventAlertCleared             EventType = "alert_cleared"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventAgentAvailabilityChanged EventType = "agent_availability_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	AgentID *string `json:"agent_id,omitempty"`
	System  bool    `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	QueueID   string      `json:"queue_id,omitempty"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AlertPayload carries a raised or cleared alert.
type AlertPayload struct {
	Alert domain.Alert `json:"alert"`
}

// AlertCuePayload asks the UI layer for an audible/visual cue. Consumers may ignore it.
type AlertCuePayload struct {
	AlertID  string               `json:"alert_id"`
	Severity domain.AlertSeverity `json:"severity"`
	Message  string               `json:"message"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// AgentAvailabilityChangedPayload payload.
type AgentAvailabilityChangedPayload struct {
	AgentID   string             `json:"agent_id"`
	OldStatus domain.AgentStatus `json:"old_status"`
	NewStatus domain.AgentStatus `json:"new_status"`
	Reason    string             `json:"reason,omitempty"`
}
