package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mediapipe/queue"
	"mediapipe/types"
)

// HealthHandler handles the health/stats endpoints.
type HealthHandler struct {
	scheduler *queue.Scheduler
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(scheduler *queue.Scheduler) *HealthHandler {
	return &HealthHandler{scheduler: scheduler, startedAt: time.Now()}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats handles GET /stats: a supplemental endpoint exposing queue counts
// and process uptime for operators, beyond the minimal /health contract.
func (h *HealthHandler) Stats(c *gin.Context) {
	state := h.scheduler.GetQueueState()
	c.JSON(http.StatusOK, gin.H{
		"uptimeSeconds": time.Since(h.startedAt).Seconds(),
		"queued":        len(state.Queue),
		"processing":    state.Processing,
		"counts": gin.H{
			"queued":      state.Counts[types.JobStatusQueued],
			"downloading": state.Counts[types.JobStatusDownloading],
			"converting":  state.Counts[types.JobStatusConverting],
			"completed":   state.Counts[types.JobStatusCompleted],
			"failed":      state.Counts[types.JobStatusFailed],
		},
	})
}
