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

// DownloadHandler handles the core media-streaming endpoints.
type DownloadHandler struct {
	client    *extractor.Client
	scheduler *queue.Scheduler
	bus       *progress.Bus
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(client *extractor.Client, scheduler *queue.Scheduler, bus *progress.Bus) *DownloadHandler {
	return &DownloadHandler{client: client, scheduler: scheduler, bus: bus}
}

// Download handles GET /download?jobId= or the legacy ?url=&format_id=
// form, which auto-admits a job. See queue.Scheduler for the admission and
// single-active-job machinery this wraps.
func (h *DownloadHandler) Download(c *gin.Context) {
	jobID := c.Query("jobId")
	legacy := jobID == ""

	var url, formatID string
	if legacy {
		url = c.Query("url")
		formatID = c.Query("format_id")
		if !urlpolicy.Allowed(url) || formatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
			return
		}
		jobID, _ = h.scheduler.AddDownloadJob(url, formatID)
	} else {
		job, ok := h.scheduler.GetJob(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
			return
		}
		url = job.URL
		formatID = job.FormatID
	}

	downloadID := uuid.NewString()

	// Register the session before StartJob, which spawns the scheduler's
	// progress-mirroring goroutine as soon as it returns: that goroutine
	// subscribes to downloadID immediately, and Bus.Subscribe silently
	// no-ops against a session that doesn't exist yet.
	h.bus.CreateSession(url, formatID, downloadID)

	started := h.scheduler.StartJob(jobID, downloadID)
	if !started {
		if legacy {
			c.JSON(http.StatusAccepted, gin.H{"jobId": jobID, "canStart": false})
		} else {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": "job cannot start yet"}})
		}
		return
	}

	title, ext := "download", "mp4"
	if info, err := h.client.Analyze(c.Request.Context(), url); err == nil {
		title = info.Title
		for _, f := range info.Formats {
			if f.FormatID == formatID {
				ext = f.ContainerExt
				break
			}
		}
	}
	filename := filenameFor(title, ext)

	c.Header("Content-Type", mimeForExt(ext))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("X-Download-Id", downloadID)
	c.Header("X-Job-Id", jobID)

	stream, cleanup, err := h.client.StreamDownload(c.Request.Context(), url, formatID, downloadID)
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
