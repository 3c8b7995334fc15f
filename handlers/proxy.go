package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mediapipe/config"
	"mediapipe/urlpolicy"
)

// ProxyHandler relays third-party images through the server so a browser
// never makes a direct cross-origin request to the source host.
type ProxyHandler struct {
	httpClient *http.Client
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler() *ProxyHandler {
	return &ProxyHandler{httpClient: &http.Client{Timeout: config.ImageProxyTimeout}}
}

// Image handles GET /proxy/image?url=.
func (h *ProxyHandler) Image(c *gin.Context) {
	url := c.Query("url")
	if !urlpolicy.Allowed(url) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ImageProxyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid URL format"}})
		return
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": gin.H{"message": "upstream image fetch failed"}})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": "upstream did not return an image"}})
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, resp.Body)
}
