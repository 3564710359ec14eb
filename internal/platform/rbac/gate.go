// Package rbac is the authorization gate. Decisions start from static role
// lists and can be refined by an optional policy engine.
package rbac

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/session/domain"
	"insurance-management/backend/internal/telemetry"
)

// ErrForbidden is returned when the caller's role does not grant the
// requested operation. Callers map it to 403.
var ErrForbidden = errors.New("forbidden")

// PolicyChecker refines a decision. When it evaluates cleanly its answer
// replaces the static role check; when it errors the gate falls back to the
// role list so a broken policy cannot lock everyone out.
type PolicyChecker interface {
	Allowed(ctx context.Context, input map[string]any) (bool, error)
}

// Gate authorizes validated identities against per-route role requirements.
type Gate struct {
	checker PolicyChecker
	auditor audit.ActivityLogger
	metrics *telemetry.AuthMetrics
}

// NewGate returns a Gate. checker, auditor, and metrics may each be nil.
func NewGate(checker PolicyChecker, auditor audit.ActivityLogger, metrics *telemetry.AuthMetrics) *Gate {
	return &Gate{checker: checker, auditor: auditor, metrics: metrics}
}

// Authorize allows view to access resource when its role is admin or appears
// in required. Every denial is audited before ErrForbidden is returned.
func (g *Gate) Authorize(ctx context.Context, view domain.View, resource string, required ...string) error {
	allowed := view.Role == "admin" || slices.Contains(required, view.Role)

	if g.checker != nil {
		verdict, err := g.checker.Allowed(ctx, map[string]any{
			"role":     view.Role,
			"user_id":  view.UserID,
			"resource": resource,
			"required": required,
		})
		if err == nil {
			allowed = verdict
		}
	}

	if allowed {
		return nil
	}
	g.metrics.RecordDenial(ctx, view.Role, resource)
	if g.auditor != nil {
		g.auditor.LogActivity(ctx, userID(view), audit.TypePermissionDenied,
			"Permission denied for "+resource, "", map[string]any{
				"role":     view.Role,
				"resource": resource,
				"required": required,
			})
	}
	return ErrForbidden
}

func userID(view domain.View) int64 {
	id, err := strconv.ParseInt(view.UserID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
