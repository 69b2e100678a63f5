package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueValidate(t *testing.T) {
	tests := []struct {
		name    string
		queue   Queue
		wantErr bool
	}{
		{name: "valid", queue: Queue{ID: "q-1", Type: QueueTypeVIP, SLATargetMinutes: 30}},
		{name: "zero sla target", queue: Queue{ID: "q-1", Type: QueueTypeGeneral}, wantErr: true},
		{name: "negative sla target", queue: Queue{ID: "q-1", Type: QueueTypeGeneral, SLATargetMinutes: -5}, wantErr: true},
		{name: "unknown type", queue: Queue{ID: "q-1", Type: "triage", SLATargetMinutes: 30}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.queue.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAgentValidate(t *testing.T) {
	valid := Agent{ID: "a-1", Status: AgentStatusAvailable, CurrentTicketCount: 3, MaxCapacity: 5}
	overloaded := valid
	overloaded.CurrentTicketCount = 12
	atCeiling := valid
	atCeiling.CurrentTicketCount = HardTicketCeiling
	aboveCeiling := valid
	aboveCeiling.CurrentTicketCount = HardTicketCeiling + 1
	negative := valid
	negative.CurrentTicketCount = -1
	noCapacity := valid
	noCapacity.MaxCapacity = 0
	badStatus := valid
	badStatus.Status = "lunch"

	tests := []struct {
		name    string
		agent   Agent
		wantErr bool
	}{
		{name: "valid", agent: valid},
		{name: "over capacity is allowed", agent: overloaded},
		{name: "at hard ceiling", agent: atCeiling},
		{name: "above hard ceiling", agent: aboveCeiling, wantErr: true},
		{name: "negative count", agent: negative, wantErr: true},
		{name: "zero capacity", agent: noCapacity, wantErr: true},
		{name: "unknown status", agent: badStatus, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.agent.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTicketValidate(t *testing.T) {
	tests := []struct {
		name    string
		ticket  Ticket
		wantErr bool
	}{
		{name: "open", ticket: Ticket{ID: "t-1", Status: TicketStatusOpen}},
		{name: "resolved with note", ticket: Ticket{ID: "t-1", Status: TicketStatusResolved, ResolutionNote: "refunded"}},
		{name: "resolved without note", ticket: Ticket{ID: "t-1", Status: TicketStatusResolved}, wantErr: true},
		{name: "closed with blank note", ticket: Ticket{ID: "t-1", Status: TicketStatusClosed, ResolutionNote: "  "}, wantErr: true},
		{name: "unknown status", ticket: Ticket{ID: "t-1", Status: "archived"}, wantErr: true},
		{name: "negative vip weight", ticket: Ticket{ID: "t-1", Status: TicketStatusOpen, VIPWeight: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
