package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and the service banner.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	state, dbStatus := "ok", "ok"
	status := http.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			state, dbStatus = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]string{"status": state, "database": dbStatus})
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "insurance-management-backend",
		"status":  "running",
	})
}
