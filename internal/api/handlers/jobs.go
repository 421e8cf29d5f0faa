package handlers

import (
	"net/http"

	"github.com/wonny/pulse/internal/scheduler"
	"github.com/wonny/pulse/pkg/logger"
)

// JobsHandler exposes scheduler state over the API
type JobsHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewJobsHandler creates a new jobs handler. The scheduler may be nil when
// the API runs without the scheduler embedded.
func NewJobsHandler(sched *scheduler.Scheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{
		scheduler: sched,
		logger:    log,
	}
}

// GetStats returns per-job execution statistics
// GET /api/jobs
func (h *JobsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobs":    h.scheduler.ListJobs(),
		"stats":   h.scheduler.Stats(),
	})
}
