package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mediapipe/config"
)

// CORS returns a configured CORS middleware. Allowed origins come from
// config.GetAllowedOrigins(); a missing Origin header is accepted only in
// development mode.
func CORS() gin.HandlerFunc {
	mode := config.GetMode()

	cfg := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if origin == "" {
				return mode == config.ModeDevelopment
			}
			for _, allowed := range config.GetAllowedOrigins() {
				if allowed == origin {
					return true
				}
			}
			return false
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Download-Id", "X-Job-Id", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}
