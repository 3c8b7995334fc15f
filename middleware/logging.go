package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Logging returns a logging middleware for HTTP requests.
func Logging() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(params gin.LogFormatterParams) string {
		return fmt.Sprintf("%s %3d %s %s %s\n",
			params.TimeStamp.Format("2006-01-02T15:04:05.000Z07:00"),
			params.StatusCode,
			params.Latency,
			params.Method,
			params.Path,
		)
	})
}
