package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mediapipe/extractor"
	"mediapipe/progress"
	"mediapipe/queue"
	"mediapipe/urlpolicy"
)

// ConvertHandler handles the two-process extractor-to-transcoder streaming
// endpoint.
type ConvertHandler struct {
	client    *extractor.Client
	scheduler *queue.Scheduler
	bus       *progress.Bus
}

// NewConvertHandler creates a new convert handler.
func NewConvertHandler(client *extractor.Client, scheduler *queue.Scheduler, bus *progress.Bus) *ConvertHandler {
	return &ConvertHandler{client: client, scheduler: scheduler, bus: bus}
}

type convertRequest struct {
	URL          string `json:"url"`
	TargetFormat string `json:"target_format"`
	JobID        string `json:"jobId"`
}

// Convert handles POST /convert.
func (h *ConvertHandler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetFormat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "target_format is required"}})
		return
	}

	jobID := req.JobID
	url := req.URL
	legacy := jobID == ""

	if legacy {
		if url != "" && !urlpolicy.Allowed(url) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
			return
		}
		var err error
		jobID, _, err = h.scheduler.AddConvertJob(url, req.TargetFormat, "", "")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
	} else {
		job, ok := h.scheduler.GetJob(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
			return
		}
		url = job.URL
	}

	downloadID := uuid.NewString()

	// Register the session before StartJob, which spawns the scheduler's
	// progress-mirroring goroutine as soon as it returns: that goroutine
	// subscribes to downloadID immediately, and Bus.Subscribe silently
	// no-ops against a session that doesn't exist yet.
	h.bus.CreateSession(url, req.TargetFormat, downloadID)

	started := h.scheduler.StartJob(jobID, downloadID)
	if !started {
		if legacy {
			c.JSON(http.StatusAccepted, gin.H{"jobId": jobID, "canStart": false})
		} else {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": "job cannot start yet"}})
		}
		return
	}

	title := "download"
	if info, err := h.client.Analyze(c.Request.Context(), url); err == nil {
		title = info.Title
	}
	filename := filenameFor(title, req.TargetFormat)

	c.Header("Content-Type", mimeForExt(req.TargetFormat))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("X-Download-Id", downloadID)
	c.Header("X-Job-Id", jobID)

	stream, cleanup, err := h.client.ConvertMedia(c.Request.Context(), url, req.TargetFormat, downloadID)
	if err != nil {
		h.bus.MarkError(downloadID, err.Error())
		h.scheduler.FailJob(jobID, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	defer cleanup()

	copyDone := make(chan struct{})
	go func() {
		select {
		case <-c.Request.Context().Done():
			cleanup()
		case <-copyDone:
		}
	}()

	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, stream)
	close(copyDone)
}
