package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("project", "p1"), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("email", "email is required"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("user", "a@x.com"), ErrConflict, true},
		{"Denied wraps ErrForbidden", Denied(), ErrForbidden, true},
		{"Upstream wraps ErrUpstream", Upstream("stripe", errors.New("card declined")), ErrUpstream, true},
		{"Unavailable wraps ErrUnavailable", Unavailable("payments disabled"), ErrUnavailable, true},
		{"Timeout wraps ErrTimeout", Timeout("openai"), ErrTimeout, true},
		{"NotFound does not match ErrValidation", NotFound("post", "x"), ErrValidation, false},
		{"wrapped twice still matches", fmt.Errorf("outer: %w", NotFound("group", "g1")), ErrNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"NotFound includes resource and id", NotFound("project", "p1"), "project not found with id p1"},
		{"ValidationFailed uses custom message", ValidationFailed("email", "email is required"), "email is required"},
		{"Denied says nothing more", Denied(), "denied"},
		{"Upstream keeps the reason verbatim", Upstream("stripe", errors.New("card declined")), "stripe: card declined"},
		{"Timeout names the service", Timeout("openai"), "openai: timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.err.Error())
		})
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("voterId", "voterId is required")
	assert.Equal(t, "voterId", err.Field)
}
