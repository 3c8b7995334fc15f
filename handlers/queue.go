package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediapipe/queue"
	"mediapipe/urlpolicy"
)

// QueueHandler handles job admission and inspection endpoints.
type QueueHandler struct {
	scheduler *queue.Scheduler
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(scheduler *queue.Scheduler) *QueueHandler {
	return &QueueHandler{scheduler: scheduler}
}

type queueDownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

// QueueDownload handles POST /queue/download.
func (h *QueueHandler) QueueDownload(c *gin.Context) {
	var req queueDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || !urlpolicy.Allowed(req.URL) || req.FormatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "url and format_id are required"}})
		return
	}

	jobID, canStart := h.scheduler.AddDownloadJob(req.URL, req.FormatID)
	c.JSON(http.StatusOK, gin.H{
		"jobId":    jobID,
		"canStart": canStart,
		"message":  queueMessage(canStart),
	})
}

type queueConvertRequest struct {
	URL          string `json:"url"`
	TargetFormat string `json:"target_format"`
	DependsOn    string `json:"depends_on"`
	InputFile    string `json:"input_file"`
}

// QueueConvert handles POST /queue/convert.
func (h *QueueHandler) QueueConvert(c *gin.Context) {
	var req queueConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetFormat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "target_format is required"}})
		return
	}
	if req.URL != "" && !urlpolicy.Allowed(req.URL) && req.InputFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
		return
	}

	jobID, canStart, err := h.scheduler.AddConvertJob(req.URL, req.TargetFormat, req.DependsOn, req.InputFile)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":    jobID,
		"canStart": canStart,
		"message":  queueMessage(canStart),
	})
}

func queueMessage(canStart bool) string {
	if canStart {
		return "job can start immediately"
	}
	return "job queued behind other work"
}

// GetQueueState handles GET /queue.
func (h *QueueHandler) GetQueueState(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.GetQueueState())
}

// GetJob handles GET /queue/{jobId}.
func (h *QueueHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, ok := h.scheduler.GetJob(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /queue/{jobId}/cancel.
func (h *QueueHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	if !h.scheduler.CancelJob(jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}
