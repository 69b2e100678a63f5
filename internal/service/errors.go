package service

import "errors"

var (
	ErrQueueNotFound   = errors.New("queue not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentNotInQueue = errors.New("agent is not a member of the queue")
	ErrAlertNotFound   = errors.New("alert not found")

	// ErrInvalidTransition means (current, target) is not in the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingComment means the transition requires a non-blank comment.
	ErrMissingComment = errors.New("comment required for this transition")
	// ErrPreconditionNotAcknowledged is only returned in strict mode.
	ErrPreconditionNotAcknowledged = errors.New("transition preconditions not acknowledged")

	// ErrStaleWrite means a concurrent writer won; re-fetch and retry.
	ErrStaleWrite = errors.New("stale write")
	// ErrFetchFailure means the store could not be read for a refresh cycle.
	ErrFetchFailure = errors.New("failed to load queue data")

	ErrQueueNotWatched    = errors.New("queue is not being monitored")
	ErrInvalidInterval    = errors.New("refresh interval not allowed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
