package domain

import "time"

// AlertSeverity ranks alerts.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// Alert is raised by the alert engine and held in a per-queue ring buffer.
type Alert struct {
	ID        string        `json:"id"`
	QueueID   string        `json:"queue_id"`
	TicketID  *string       `json:"ticket_id,omitempty"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cycle     uint64        `json:"cycle"`
	CreatedAt time.Time     `json:"created_at"`
}
