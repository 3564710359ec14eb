// Package domain holds the session records and the views derived from them.
package domain

import "time"

// Session is one row of the server-side session table. A session exists from
// login until logout or expiry; IsActive is flipped off rather than the row
// being deleted so the audit trail keeps the session's history.
type Session struct {
	SessionID    string
	UserID       int64
	IPAddress    string
	IsActive     bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// View is the identity attached to a request after validation. Role and
// UserID come from the session store, never from token claims, except under
// the lenient claims fallback which marks the result as reconciled.
type View struct {
	UserID        string
	Role          string
	InsuranceType string
	SessionID     string
}

// Validation is the outcome of the authoritative store-side check.
type Validation struct {
	Valid         bool
	UserID        int64
	Role          string
	InsuranceType string
}
