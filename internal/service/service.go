// Package service holds the business rules behind the HTTP API. Every state
// change is written to the store before the matching event is published.
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/xid"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Publisher pushes events to connected clients.
type Publisher interface {
	Publish(ctx context.Context, e models.Event)
	SendTo(ctx context.Context, userID string, e models.Event)
	// Disconnect sends e to userID and then closes their connections.
	Disconnect(ctx context.Context, userID string, e models.Event)
}

func newID() string {
	return xid.New().String()
}

func now() time.Time {
	return time.Now().UTC()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// normalizeEmail lowercases and validates an address used as a user key.
func normalizeEmail(field, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, " <>") {
		return "", apperror.ValidationFailed(field, field+" is not a valid email address")
	}
	return email, nil
}

func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	if len([]rune(value)) > max {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return value, nil
}

func optionalText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if len([]rune(value)) > max {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return value, nil
}
