package domain

import "time"

// ActivityType captures what changed in an activity entry.
type ActivityType string

const (
	ActivityStatusChange ActivityType = "status_change"
)

// TicketActivity is an immutable audit trail entry.
type TicketActivity struct {
	ID        string
	TicketID  string
	ActorID   *string
	Type      ActivityType
	OldValue  map[string]any
	NewValue  map[string]any
	Comment   string
	CreatedAt time.Time
}
