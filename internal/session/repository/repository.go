// Package repository provides access to the server-side session store.
package repository

import (
	"context"
	"errors"

	"insurance-management/backend/internal/session/domain"
)

// ErrUnavailable wraps store failures so callers can distinguish an
// unreachable store from a rejected session.
var ErrUnavailable = errors.New("session store unavailable")

// Repository is the session store gateway. Find returns (nil, nil) when no
// record exists; only infrastructure failures surface as errors.
type Repository interface {
	// Find loads the session record for sessionID, or nil when absent.
	Find(ctx context.Context, sessionID string) (*domain.Session, error)

	// Create inserts a session row. Inserting an ID that already exists is
	// treated as success so concurrent heals converge on one record.
	Create(ctx context.Context, sessionID string, userID int64, ipAddress string) error

	// Reactivate marks the session active again and refreshes last_activity.
	Reactivate(ctx context.Context, sessionID string) error

	// RebindUser repoints the session at userID.
	RebindUser(ctx context.Context, sessionID string, userID int64) error

	// Deactivate ends the session without deleting its row.
	Deactivate(ctx context.Context, sessionID string) error

	// Validate runs the authoritative store-side check, bumping
	// last_activity when the session is good.
	Validate(ctx context.Context, sessionID string) (*domain.Validation, error)
}
