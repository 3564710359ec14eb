// Package audit emits security-relevant activity events to the structured
// log and, best effort, to the database activity trail.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types recorded by the auth subsystem.
const (
	TypeLogin            = "login"
	TypeLogout           = "logout"
	TypeFailedLogin      = "failed_login"
	TypeSessionRejected  = "session_rejected"
	TypeSessionRepaired  = "session_repaired"
	TypePermissionDenied = "permission_denied"
)

// ActivityLogger records one activity event. Implementations must never
// block the request on sink failures.
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID int64, activityType, description, ipAddress string, details map[string]any)
}

// Recorder is the database side of the trail. *procedure.Client satisfies it.
type Recorder interface {
	RecordActivity(ctx context.Context, userID int64, activityType, description, ipAddress, detailsJSON string) error
}

// Logger writes every event to the structured log and forwards it to the
// database recorder. A database failure is logged and swallowed; the log
// line is the event of record.
type Logger struct {
	log      zerolog.Logger
	recorder Recorder
}

// NewLogger returns a Logger. recorder may be nil for log-only operation.
func NewLogger(log zerolog.Logger, recorder Recorder) *Logger {
	return &Logger{log: log, recorder: recorder}
}

func (l *Logger) LogActivity(ctx context.Context, userID int64, activityType, description, ipAddress string, details map[string]any) {
	eventID := uuid.NewString()

	evt := l.log.Info().
		Str("event_id", eventID).
		Str("activity_type", activityType).
		Str("ip_address", ipAddress)
	if userID != 0 {
		evt = evt.Int64("user_id", userID)
	}
	if len(details) > 0 {
		evt = evt.Interface("details", details)
	}
	evt.Msg(description)

	if l.recorder == nil {
		return
	}
	var detailsJSON string
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	if err := l.recorder.RecordActivity(ctx, userID, activityType, description, ipAddress, detailsJSON); err != nil {
		l.log.Warn().Err(err).Str("event_id", eventID).Msg("activity trail write failed")
	}
}
