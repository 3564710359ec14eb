package audit

import (
	"context"
	"time"
)

const emitTimeout = 5 * time.Second

// EmitAsync records the event on a background goroutine so the request is
// never held up by the activity trail. The event gets a fresh context; the
// request's context is usually cancelled before the write lands.
func EmitAsync(logger ActivityLogger, userID int64, activityType, description, ipAddress string, details map[string]any) {
	if logger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		logger.LogActivity(ctx, userID, activityType, description, ipAddress, details)
	}()
}
