package domain

import (
	"errors"
	"strings"
	"time"
)

// Role enumerates operator roles.
type Role string

const (
	RoleAgent    Role = "AGENT"
	RoleTeamLead Role = "TEAM_LEAD"
	RoleAdmin    Role = "ADMIN"
)

// AgentStatus is the availability state an agent reports.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusAway      AgentStatus = "away"
	AgentStatusOffline   AgentStatus = "offline"
)

// HardTicketCeiling bounds CurrentTicketCount. MaxCapacity may be exceeded, this may not.
const HardTicketCeiling = 200

// PerformanceStats holds rolling agent performance figures.
type PerformanceStats struct {
	AvgResolutionMinutes float64
	SuccessRate          float64 // 0-100
	Satisfaction         float64 // 0-5
}

// Agent models a support agent that can be a member of one or more queues.
type Agent struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	Status             AgentStatus
	StatusReason       string
	CurrentTicketCount int
	MaxCapacity        int
	Skills             []string
	Stats              PerformanceStats
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Valid reports whether the status is one of the enumerated values.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusAvailable, AgentStatusBusy, AgentStatusAway, AgentStatusOffline:
		return true
	}
	return false
}

// HasCapacity reports whether the agent can take another ticket.
func (a Agent) HasCapacity() bool {
	return a.CurrentTicketCount < a.MaxCapacity
}

// Overloaded signals an agent carrying more than its nominal capacity.
func (a Agent) Overloaded() bool {
	return a.CurrentTicketCount > a.MaxCapacity
}

// HasSkill matches skill tags case-insensitively.
func (a Agent) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	return false
}

// Validate checks the agent invariants.
func (a Agent) Validate() error {
	if a.MaxCapacity <= 0 {
		return errors.New("max capacity must be positive")
	}
	if a.CurrentTicketCount < 0 || a.CurrentTicketCount > HardTicketCeiling {
		return errors.New("current ticket count outside hard ceiling")
	}
	if !a.Status.Valid() {
		return errors.New("unknown agent status")
	}
	return nil
}
