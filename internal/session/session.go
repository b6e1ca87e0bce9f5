// Package session keeps amendment working copies between requests.
package session

import (
	"context"
	"errors"

	"procurement-engine/internal/core"
)

// ErrNotFound is returned when a session token is unknown or has expired.
var ErrNotFound = errors.New("amendment session not found or expired")

// Store holds amendment sessions by token. Every Put restarts the session's TTL.
type Store interface {
	Get(ctx context.Context, token string) (core.AmendmentSession, error)
	Put(ctx context.Context, token string, s core.AmendmentSession) error
	Delete(ctx context.Context, token string) error
}
