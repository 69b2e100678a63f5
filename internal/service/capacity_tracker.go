package service

import (
	"github.com/spec-kit/queue-engine/internal/domain"
)

// Utilization is the queue-level load figure. Known is false when the queue
// has no agents (or the agent list could not be read); Pct is then 0 and must
// not be read as "idle". OpenTicketCount is nil when the ticket list could not
// be read.
type Utilization struct {
	Pct             float64 `json:"utilization_pct"`
	Known           bool    `json:"known"`
	AvailableAgents int     `json:"available_agents"`
	TotalAgents     int     `json:"total_agents"`
	OpenTicketCount *int    `json:"open_ticket_count"`
}

// LoadBuckets splits an agent's tickets by urgency for display.
type LoadBuckets struct {
	Urgent int `json:"urgent"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total sums every bucket.
func (b LoadBuckets) Total() int {
	return b.Urgent + b.High + b.Medium + b.Low
}

// AgentLoad is the per-agent capacity view.
type AgentLoad struct {
	AgentID            string             `json:"agent_id"`
	Name               string             `json:"name"`
	Status             domain.AgentStatus `json:"status"`
	CurrentTicketCount int                `json:"current_ticket_count"`
	MaxCapacity        int                `json:"max_capacity"`
	Overloaded         bool               `json:"overloaded"`
	// Buckets is nil when the ticket list could not be read.
	Buckets *LoadBuckets `json:"buckets"`
}

// CapacityTracker computes utilization and per-agent load. It holds no state.
type CapacityTracker struct{}

// ComputeUtilization returns round(sum(count)/sum(capacity)*100, 1dp) along
// with the open ticket count.
func (c CapacityTracker) ComputeUtilization(agents []domain.Agent, tickets []domain.Ticket) Utilization {
	u := c.ComputeAgentUtilization(agents)
	open := 0
	for _, t := range tickets {
		if t.IsOpen() {
			open++
		}
	}
	u.OpenTicketCount = &open
	return u
}

// ComputeAgentUtilization is ComputeUtilization for a cycle without a ticket
// list; OpenTicketCount stays nil.
func (CapacityTracker) ComputeAgentUtilization(agents []domain.Agent) Utilization {
	u := Utilization{TotalAgents: len(agents)}
	load, capacity := 0, 0
	for _, a := range agents {
		load += a.CurrentTicketCount
		capacity += a.MaxCapacity
		if a.Status == domain.AgentStatusAvailable {
			u.AvailableAgents++
		}
	}
	if len(agents) == 0 || capacity <= 0 {
		return u
	}
	u.Known = true
	u.Pct = round1(float64(load) / float64(capacity) * 100)
	return u
}

// AgentLoads buckets each agent's open tickets by priority. The store's
// CurrentTicketCount is authoritative: unseen tickets are counted as medium
// and surplus visible tickets are trimmed from the lowest bucket up, so the
// buckets always sum to CurrentTicketCount.
func (c CapacityTracker) AgentLoads(agents []domain.Agent, tickets []domain.Ticket) []AgentLoad {
	byAgent := make(map[string]*LoadBuckets, len(agents))
	for _, a := range agents {
		byAgent[a.ID] = &LoadBuckets{}
	}
	for _, t := range tickets {
		if !t.IsOpen() || t.AssigneeID == nil {
			continue
		}
		b, ok := byAgent[*t.AssigneeID]
		if !ok {
			continue
		}
		switch t.Priority {
		case domain.TicketPriorityCritical:
			b.Urgent++
		case domain.TicketPriorityHigh:
			b.High++
		case domain.TicketPriorityLow:
			b.Low++
		default:
			b.Medium++
		}
	}

	out := c.AgentCapacities(agents)
	for i := range out {
		buckets := reconcileBuckets(*byAgent[out[i].AgentID], out[i].CurrentTicketCount)
		out[i].Buckets = &buckets
	}
	return out
}

// AgentCapacities lists per-agent load without priority buckets, for cycles
// whose ticket list is unavailable.
func (CapacityTracker) AgentCapacities(agents []domain.Agent) []AgentLoad {
	out := make([]AgentLoad, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentLoad{
			AgentID:            a.ID,
			Name:               a.Name,
			Status:             a.Status,
			CurrentTicketCount: a.CurrentTicketCount,
			MaxCapacity:        a.MaxCapacity,
			Overloaded:         a.Overloaded(),
		})
	}
	return out
}

func reconcileBuckets(b LoadBuckets, count int) LoadBuckets {
	if count < 0 {
		count = 0
	}
	diff := count - b.Total()
	if diff > 0 {
		b.Medium += diff
		return b
	}
	excess := -diff
	for _, bucket := range []*int{&b.Low, &b.Medium, &b.High, &b.Urgent} {
		if excess == 0 {
			break
		}
		take := *bucket
		if take > excess {
			take = excess
		}
		*bucket -= take
		excess -= take
	}
	return b
}
