package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediapipe/progress"
)

// ProgressHandler handles the push-stream progress endpoints.
type ProgressHandler struct {
	bus *progress.Bus
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(bus *progress.Bus) *ProgressHandler {
	return &ProgressHandler{bus: bus}
}

// Stream handles GET /progress/{downloadId}: a text/event-stream push
// channel. Must be exempt from global rate limiting and from intermediary
// response buffering (see the X-Accel-Buffering header below).
func (h *ProgressHandler) Stream(c *gin.Context) {
	downloadID := c.Param("downloadId")
	if downloadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "downloadId is required"}})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	events, unsubscribe := h.bus.Subscribe(downloadID)
	defer unsubscribe()

	flusher, canFlush := c.Writer.(http.Flusher)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			if canFlush {
				flusher.Flush()
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// Status handles GET /progress/{downloadId}/status.
func (h *ProgressHandler) Status(c *gin.Context) {
	downloadID := c.Param("downloadId")
	snap := h.bus.GetProgress(downloadID)
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "download not found"}})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Cancel handles POST /download/{downloadId}/cancel.
func (h *ProgressHandler) Cancel(c *gin.Context) {
	downloadID := c.Param("downloadId")
	if snap := h.bus.GetProgress(downloadID); snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "download not found"}})
		return
	}
	h.bus.Cancel(downloadID)
	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}
