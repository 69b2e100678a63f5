package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("saving agent: %w", NewConflict("taken", nil))
	de := ToDomainError(wrapped)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "stale write", err: NewStaleWrite("agent changed", nil), want: true},
		{name: "wrapped stale write", err: fmt.Errorf("toggle: %w", NewStaleWrite("agent changed", map[string]any{"agent_id": "a-1"})), want: true},
		{name: "conflict", err: NewConflict("queue not watched", nil), want: false},
		{name: "validation without details", err: NewValidationError("bad", nil), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestFetchFailureUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewFetchFailure("failed to load queue data", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load queue data: connection refused", err.Error())
}
