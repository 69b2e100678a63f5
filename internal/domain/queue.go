package domain

import (
	"errors"
	"time"
)

// QueueType classifies a routing bucket.
type QueueType string

const (
	QueueTypeGeneral     QueueType = "general"
	QueueTypeSpecialized QueueType = "specialized"
	QueueTypeEscalation  QueueType = "escalation"
	QueueTypeVIP         QueueType = "vip"
)

// RoutingRules are the assignment rules shared by a queue's agents.
type RoutingRules struct {
	MaxTicketsPerAgent int
	AutoAssignment     bool
	PriorityWeighting  bool
	SkillMatching      bool
}

// Queue groups agents and tickets. Agents are referenced by id and may belong
// to several queues; a ticket belongs to exactly one queue through Ticket.QueueID.
type Queue struct {
	ID               string
	Name             string
	Type             QueueType
	AgentIDs         []string
	SLATargetMinutes int
	// SLAWarningMinutes overrides the default warning window when positive.
	SLAWarningMinutes int
	Rules             RoutingRules
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the queue invariants.
func (q Queue) Validate() error {
	if q.SLATargetMinutes <= 0 {
		return errors.New("sla target minutes must be positive")
	}
	switch q.Type {
	case QueueTypeGeneral, QueueTypeSpecialized, QueueTypeEscalation, QueueTypeVIP:
	default:
		return errors.New("unknown queue type")
	}
	return nil
}
