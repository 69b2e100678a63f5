package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// StatusTransition is one row of the ticket state machine.
type StatusTransition struct {
	From             domain.TicketStatus `json:"from"`
	To               domain.TicketStatus `json:"to"`
	Label            string              `json:"label"`
	RequiresComment  bool                `json:"requires_comment"`
	Validations      []string            `json:"validations"`
	EstimatedMinutes *int                `json:"estimated_minutes,omitempty"`
}

// TransitionRequest is what a caller asks the guard for.
type TransitionRequest struct {
	Target  domain.TicketStatus
	Comment string
	// Acknowledged lists the validations the caller has confirmed. Only
	// checked when the guard runs in strict mode.
	Acknowledged []string
}

// TransitionError carries the rejected pair. It unwraps to one of
// ErrInvalidTransition, ErrMissingComment or ErrPreconditionNotAcknowledged.
type TransitionError struct {
	From    domain.TicketStatus
	To      domain.TicketStatus
	Missing []string
	Err     error
}

func (e *TransitionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s -> %s: %v: %s", e.From, e.To, e.Err, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func minutes(n int) *int {
	return &n
}

// DefaultTransitions is the ticket state machine. There is no transition out
// of resolved other than to closed, and none out of closed.
func DefaultTransitions() []StatusTransition {
	return []StatusTransition{
		{From: domain.TicketStatusOpen, To: domain.TicketStatusInProgress, Label: "Start work"},
		{
			From:            domain.TicketStatusInProgress,
			To:              domain.TicketStatusPending,
			Label:           "Wait for customer",
			RequiresComment: true,
			Validations:     []string{"customer response required"},
		},
		{
			From:             domain.TicketStatusInProgress,
			To:               domain.TicketStatusResolved,
			Label:            "Resolve",
			RequiresComment:  true,
			Validations:      []string{"resolution documented", "customer notified"},
			EstimatedMinutes: minutes(10),
		},
		{From: domain.TicketStatusPending, To: domain.TicketStatusInProgress, Label: "Resume work"},
		{
			From:             domain.TicketStatusResolved,
			To:               domain.TicketStatusClosed,
			Label:            "Close",
			Validations:      []string{"customer confirmation received"},
			EstimatedMinutes: minutes(2),
		},
	}
}

type transitionKey struct {
	from, to domain.TicketStatus
}

// StatusTransitionGuard enforces table membership and comment presence.
// Validations are advisory unless strict is set.
type StatusTransitionGuard struct {
	table  map[transitionKey]StatusTransition
	order  []StatusTransition
	strict bool
}

// NewStatusTransitionGuard builds a guard over DefaultTransitions.
func NewStatusTransitionGuard(strict bool) *StatusTransitionGuard {
	rows := DefaultTransitions()
	g := &StatusTransitionGuard{
		table:  make(map[transitionKey]StatusTransition, len(rows)),
		order:  rows,
		strict: strict,
	}
	for _, row := range rows {
		g.table[transitionKey{row.From, row.To}] = row
	}
	return g
}

// Lookup returns the table row for (from, to).
func (g *StatusTransitionGuard) Lookup(from, to domain.TicketStatus) (StatusTransition, bool) {
	row, ok := g.table[transitionKey{from, to}]
	return row, ok
}

// Available lists the rows leaving from, in table order.
func (g *StatusTransitionGuard) Available(from domain.TicketStatus) []StatusTransition {
	out := []StatusTransition{}
	for _, row := range g.order {
		if row.From == from {
			out = append(out, row)
		}
	}
	return out
}

// Attempt checks req against the ticket's current status and returns the
// updated ticket. The input ticket is not modified.
func (g *StatusTransitionGuard) Attempt(ticket domain.Ticket, req TransitionRequest, now time.Time) (domain.Ticket, StatusTransition, error) {
	row, ok := g.Lookup(ticket.Status, req.Target)
	if !ok {
		return ticket, StatusTransition{}, &TransitionError{From: ticket.Status, To: req.Target, Err: ErrInvalidTransition}
	}

	comment := strings.TrimSpace(req.Comment)
	if row.RequiresComment && comment == "" {
		return ticket, row, &TransitionError{From: row.From, To: row.To, Err: ErrMissingComment}
	}
	// A resolved ticket must carry a note; closing one without it needs a comment.
	if req.Target.Terminal() && comment == "" && strings.TrimSpace(ticket.ResolutionNote) == "" {
		return ticket, row, &TransitionError{From: row.From, To: row.To, Err: ErrMissingComment}
	}

	if g.strict {
		if missing := unacknowledged(row.Validations, req.Acknowledged); len(missing) > 0 {
			return ticket, row, &TransitionError{From: row.From, To: row.To, Missing: missing, Err: ErrPreconditionNotAcknowledged}
		}
	}

	updated := ticket
	updated.Status = row.To
	switch row.To {
	case domain.TicketStatusResolved:
		updated.ResolutionNote = comment
	case domain.TicketStatusClosed:
		if updated.ResolutionNote == "" {
			updated.ResolutionNote = comment
		}
		closedAt := now
		updated.ClosedAt = &closedAt
	}
	return updated, row, nil
}

func unacknowledged(required, acknowledged []string) []string {
	seen := make(map[string]struct{}, len(acknowledged))
	for _, a := range acknowledged {
		seen[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := seen[strings.ToLower(r)]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}
