package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewInvalidTransition reports a status change that is not in the transition table.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError("INVALID_TRANSITION", message, http.StatusConflict, details)
}

// NewMissingComment reports a transition that requires a comment.
func NewMissingComment(message string, details map[string]any) error {
	return NewDomainError("MISSING_COMMENT", message, http.StatusUnprocessableEntity, details)
}

func NewPreconditionNotAcknowledged(message string, details map[string]any) error {
	return NewDomainError("PRECONDITION_NOT_ACKNOWLEDGED", message, http.StatusUnprocessableEntity, details)
}

// NewStaleWrite reports a lost optimistic-concurrency race. Callers should re-fetch and retry.
func NewStaleWrite(message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["retryable"] = true
	return NewDomainError("STALE_WRITE", message, http.StatusConflict, details)
}

func NewFetchFailure(message string, err error) error {
	return &DomainError{
		Code:       "FETCH_FAILURE",
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInvalidInterval(message string, details map[string]any) error {
	return NewDomainError("INVALID_INTERVAL", message, http.StatusBadRequest, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsRetryable reports whether the caller may retry after re-fetching.
func IsRetryable(err error) bool {
	de := ToDomainError(err)
	if de == nil || de.Details == nil {
		return false
	}
	retry, _ := de.Details["retryable"].(bool)
	return retry
}
