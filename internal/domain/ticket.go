package domain

import (
	"errors"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	ExternalKey    string
	QueueID        string
	Title          string
	Status         TicketStatus
	Priority       TicketPriority
	DueAt          *time.Time
	AssigneeID     *string
	Skills         []string
	VIPWeight      float64
	ResolutionNote string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// Valid reports whether the status is one of the enumerated values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether SLA tracking stops in this status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Valid reports whether the priority is one of the enumerated values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// IsOpen reports whether the ticket still counts against queue load.
func (t Ticket) IsOpen() bool {
	return !t.Status.Terminal()
}

// IsVIP reports whether the ticket carries a VIP weight.
func (t Ticket) IsVIP() bool {
	return t.VIPWeight > 0
}

// Validate checks the ticket invariants.
func (t Ticket) Validate() error {
	if !t.Status.Valid() {
		return errors.New("unknown ticket status")
	}
	if t.VIPWeight < 0 {
		return errors.New("vip weight must be non-negative")
	}
	if t.Status.Terminal() && strings.TrimSpace(t.ResolutionNote) == "" {
		return errors.New("resolved or closed ticket requires a resolution note")
	}
	return nil
}
