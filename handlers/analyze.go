package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"mediapipe/config"
	"mediapipe/extractor"
	"mediapipe/urlpolicy"
)

// AnalyzeHandler handles metadata extraction endpoints.
type AnalyzeHandler struct {
	client *extractor.Client
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(client *extractor.Client) *AnalyzeHandler {
	return &AnalyzeHandler{client: client}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

// Analyze handles POST /analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !urlpolicy.Allowed(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
		return
	}

	info, err := h.client.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		writeExtractionError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type batchResult struct {
	URL     string      `json:"url"`
	Success bool        `json:"success"`
	Info    interface{} `json:"info,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// AnalyzeBatch handles POST /analyze/batch. URLs are validated up front;
// valid ones are analyzed in parallel; per-URL failures are captured
// without failing the whole batch.
func (h *AnalyzeHandler) AnalyzeBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "urls must be a non-empty array"}})
		return
	}
	if len(req.URLs) > config.MaxBatchURLs {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "too many URLs in batch"}})
		return
	}

	results := make([]batchResult, len(req.URLs))
	var wg sync.WaitGroup
	for i, url := range req.URLs {
		if !urlpolicy.Allowed(url) {
			results[i] = batchResult{URL: url, Success: false, Error: "Invalid URL format"}
			continue
		}
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			info, err := h.client.Analyze(c.Request.Context(), url)
			if err != nil {
				results[i] = batchResult{URL: url, Success: false, Error: err.Error()}
				return
			}
			results[i] = batchResult{URL: url, Success: true, Info: info}
		}(i, url)
	}
	wg.Wait()

	successful, failed := 0, 0
	for _, r := range results {
		if r.Success {
			successful++
		} else {
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"total":      len(results),
		"successful": successful,
		"failed":     failed,
	})
}

// writeExtractionError maps an *extractor.Error to the right HTTP status.
func writeExtractionError(c *gin.Context, err error) {
	kind, ok := extractor.AsError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "internal error"}})
		return
	}

	status := http.StatusInternalServerError
	switch kind.Kind {
	case extractor.KindNotFound:
		status = http.StatusInternalServerError
	case extractor.KindUnsupported:
		status = http.StatusBadRequest
	case extractor.KindUnavailable:
		status = http.StatusBadGateway
	case extractor.KindTimeout:
		status = http.StatusGatewayTimeout
	case extractor.KindFailed:
		status = http.StatusInternalServerError
	}

	body := gin.H{"message": kind.Message}
	if config.GetMode() == config.ModeDevelopment && kind.Cause != nil {
		body["cause"] = kind.Cause.Error()
	}
	c.JSON(status, gin.H{"error": body})
}
