package repository

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a refresh token is unknown or
// expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores refresh sessions keyed by opaque token.
type SessionRepository interface {
	// CreateSession stores a refresh token for a user until expiresAt.
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error

	// GetSession returns the owning user id, or ErrSessionNotFound.
	GetSession(ctx context.Context, token string) (int64, error)

	// DeleteSession revokes a refresh token.
	DeleteSession(ctx context.Context, token string) error
}
