// Package service implements session validation over the token codec and the
// session store, including the self-healing reconciliation path.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/session/domain"
	"insurance-management/backend/internal/session/repository"
	"insurance-management/backend/internal/telemetry"
)

// OperatingMode selects how aggressively validation repairs a session that
// disagrees with its token.
type OperatingMode string

const (
	// ModeStrict creates a missing session record from verified claims but
	// never resurrects one that was deactivated or rebinds one to another
	// user. Production runs strict.
	ModeStrict OperatingMode = "strict"

	// ModeLenient additionally reactivates inactive sessions, rebinds
	// mismatched ones, and falls back to token claims when the store still
	// disagrees. Reactivation undoes logout, so lenient is refused outside
	// development.
	ModeLenient OperatingMode = "lenient"
)

// ParseMode returns the OperatingMode for s.
func ParseMode(s string) (OperatingMode, error) {
	switch OperatingMode(s) {
	case ModeStrict, ModeLenient:
		return OperatingMode(s), nil
	default:
		return "", fmt.Errorf("unknown operating mode %q", s)
	}
}

// Outcome classifies a successful validation.
type Outcome string

const (
	// OutcomeAccepted means the store confirmed the session as presented.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeReconciled means the store initially disagreed and the session
	// was repaired, or claims were used as the identity source.
	OutcomeReconciled Outcome = "reconciled"
)

var (
	// ErrMissingSession is returned when the token carries no session id and
	// the mode does not allow inventing one.
	ErrMissingSession = errors.New("token has no session")

	// ErrSessionInvalid is returned when the store rejects the session and
	// no permitted repair applies.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrStoreUnavailable is returned when the session store cannot be
	// reached. Callers map it to 503, never to 401.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Result is the identity produced by a successful validation.
type Result struct {
	Outcome Outcome
	View    domain.View
	Claims  *security.Claims
}

// Validator runs the token-then-store validation pipeline.
type Validator struct {
	tokens   *security.TokenProvider
	sessions repository.Repository
	auditor  audit.ActivityLogger
	metrics  *telemetry.AuthMetrics
	mode     OperatingMode
}

// NewValidator wires the validation pipeline. auditor and metrics may be nil.
func NewValidator(tokens *security.TokenProvider, sessions repository.Repository, auditor audit.ActivityLogger, metrics *telemetry.AuthMetrics, mode OperatingMode) *Validator {
	return &Validator{tokens: tokens, sessions: sessions, auditor: auditor, metrics: metrics, mode: mode}
}

// Validate checks tokenString against the session store and returns the
// store-backed identity. The flow is decode, store check, then at most one
// repair followed by one re-check. Every rejection is audited before it is
// returned.
func (v *Validator) Validate(ctx context.Context, tokenString, clientIP string) (*Result, error) {
	claims, err := v.tokens.Decode(tokenString)
	if err != nil {
		v.reject(ctx, 0, clientIP, "Invalid or expired token", nil)
		v.metrics.RecordValidation(ctx, "invalid_token")
		return nil, security.ErrInvalidToken
	}

	claimUserID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		v.reject(ctx, 0, clientIP, "Token subject is not a user id", map[string]any{"sub": claims.Subject})
		v.metrics.RecordValidation(ctx, "invalid_token")
		return nil, security.ErrInvalidToken
	}

	if claims.SessionID == "" {
		if v.mode != ModeLenient {
			v.reject(ctx, claimUserID, clientIP, "Token carries no session id", nil)
			v.metrics.RecordValidation(ctx, "missing_session")
			return nil, ErrMissingSession
		}
		return v.adoptClaims(ctx, claims, claimUserID, clientIP)
	}

	check, err := v.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, v.storeDown(ctx, claimUserID, clientIP, err)
	}
	if check.Valid {
		v.metrics.RecordValidation(ctx, string(OutcomeAccepted))
		return &Result{Outcome: OutcomeAccepted, View: viewFrom(check, claims.SessionID), Claims: claims}, nil
	}

	healed, err := v.heal(ctx, claims, claimUserID, clientIP)
	if err != nil {
		return nil, err
	}
	if !healed {
		if v.mode == ModeLenient {
			return v.adoptClaims(ctx, claims, claimUserID, clientIP)
		}
		v.reject(ctx, claimUserID, clientIP, "Session rejected by store", map[string]any{"session_id": claims.SessionID})
		v.metrics.RecordValidation(ctx, "rejected")
		return nil, ErrSessionInvalid
	}

	recheck, err := v.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, v.storeDown(ctx, claimUserID, clientIP, err)
	}
	if !recheck.Valid {
		if v.mode == ModeLenient {
			return v.adoptClaims(ctx, claims, claimUserID, clientIP)
		}
		v.reject(ctx, claimUserID, clientIP, "Session still invalid after repair", map[string]any{"session_id": claims.SessionID})
		v.metrics.RecordValidation(ctx, "rejected")
		return nil, ErrSessionInvalid
	}
	v.metrics.RecordValidation(ctx, string(OutcomeReconciled))
	return &Result{Outcome: OutcomeReconciled, View: viewFrom(recheck, claims.SessionID), Claims: claims}, nil
}

// heal applies at most one repair and reports whether it did anything.
func (v *Validator) heal(ctx context.Context, claims *security.Claims, claimUserID int64, clientIP string) (bool, error) {
	record, err := v.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		return false, v.storeDown(ctx, claimUserID, clientIP, err)
	}

	switch {
	case record == nil:
		// A verified token referencing a record the store lost. Recreating
		// it from claims is safe in both modes: the signature already
		// proves the session was issued.
		if err := v.sessions.Create(ctx, claims.SessionID, claimUserID, clientIP); err != nil {
			return false, v.storeDown(ctx, claimUserID, clientIP, err)
		}
		return true, nil

	case !record.IsActive:
		if v.mode != ModeLenient {
			return false, nil
		}
		if err := v.sessions.Reactivate(ctx, claims.SessionID); err != nil {
			return false, v.storeDown(ctx, claimUserID, clientIP, err)
		}
		return true, nil

	case record.UserID != claimUserID:
		if v.mode != ModeLenient {
			return false, nil
		}
		if err := v.sessions.RebindUser(ctx, claims.SessionID, claimUserID); err != nil {
			return false, v.storeDown(ctx, claimUserID, clientIP, err)
		}
		return true, nil
	}
	return false, nil
}

// Repair force-reactivates sessionID and rebinds it to userID. It is an
// explicit administrative operation, always audited, independent of mode.
func (v *Validator) Repair(ctx context.Context, sessionID string, userID int64, clientIP string) error {
	if err := v.sessions.Reactivate(ctx, sessionID); err != nil {
		return v.storeDown(ctx, userID, clientIP, err)
	}
	if err := v.sessions.RebindUser(ctx, sessionID, userID); err != nil {
		return v.storeDown(ctx, userID, clientIP, err)
	}
	if v.auditor != nil {
		v.auditor.LogActivity(ctx, userID, audit.TypeSessionRepaired, "Session force-repaired", clientIP,
			map[string]any{"session_id": sessionID})
	}
	return nil
}

// adoptClaims builds a claims-derived identity, creating a backing session
// record so subsequent requests validate against the store again.
func (v *Validator) adoptClaims(ctx context.Context, claims *security.Claims, claimUserID int64, clientIP string) (*Result, error) {
	sessionID := claims.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := v.sessions.Create(ctx, sessionID, claimUserID, clientIP); err != nil {
		return nil, v.storeDown(ctx, claimUserID, clientIP, err)
	}
	v.metrics.RecordValidation(ctx, string(OutcomeReconciled))
	return &Result{
		Outcome: OutcomeReconciled,
		View: domain.View{
			UserID:    claims.Subject,
			Role:      claims.VaiTro,
			SessionID: sessionID,
		},
		Claims: claims,
	}, nil
}

func (v *Validator) storeDown(ctx context.Context, userID int64, clientIP string, cause error) error {
	v.reject(ctx, userID, clientIP, "Session store unreachable", map[string]any{"error": cause.Error()})
	v.metrics.RecordValidation(ctx, "store_unavailable")
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
}

func (v *Validator) reject(ctx context.Context, userID int64, clientIP, description string, details map[string]any) {
	if v.auditor == nil {
		return
	}
	v.auditor.LogActivity(ctx, userID, audit.TypeSessionRejected, description, clientIP, details)
}

func viewFrom(check *domain.Validation, sessionID string) domain.View {
	return domain.View{
		UserID:        strconv.FormatInt(check.UserID, 10),
		Role:          check.Role,
		InsuranceType: check.InsuranceType,
		SessionID:     sessionID,
	}
}
