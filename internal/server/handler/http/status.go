// Package http provides the operational HTTP endpoints: liveness,
// sync status and metrics.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/libresync/libresync/internal/service"
)

// StatusService reports the current sync state.
type StatusService interface {
	// Status returns a point-in-time snapshot of the login and run state.
	Status(ctx context.Context) service.Status
}

// Schedule reports when the next scheduled run is due.
type Schedule interface {
	NextRun() (time.Time, bool)
}

// StatusHandler serves the liveness and status endpoints. Schedule may
// be nil when no recurring job exists.
type StatusHandler struct {
	StatusService StatusService
	Schedule      Schedule
}

// statusResponse is the /status body: the sync snapshot plus the next
// scheduled run when one is pending.
type statusResponse struct {
	service.Status
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// Healthz handles GET /healthz requests. It only confirms the process
// is serving; sync health is reported by /status.
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Status handles GET /status requests, writing the sync snapshot as JSON.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: h.StatusService.Status(r.Context())}
	if h.Schedule != nil {
		if at, ok := h.Schedule.NextRun(); ok {
			resp.NextRunAt = &at
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
