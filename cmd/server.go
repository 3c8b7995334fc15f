package cmd

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"mediapipe/config"
	"mediapipe/extractor"
	"mediapipe/handlers"
	"mediapipe/middleware"
	"mediapipe/progress"
	"mediapipe/queue"
	"mediapipe/websocket"
)

// StartWebServer wires every component and runs the HTTP server until it
// exits or the process receives a fatal start-time error.
func StartWebServer(port string) error {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else if config.GetMode() == config.ModeProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	bus := progress.NewBus()
	cache := extractor.NewCache()
	client := extractor.NewClient(bus, cache)
	scheduler := queue.NewScheduler(bus)

	hub := websocket.NewHub()
	go hub.Run()
	scheduler.OnChange(hub.Broadcast)

	analyzeHandler := handlers.NewAnalyzeHandler(client)
	queueHandler := handlers.NewQueueHandler(scheduler)
	downloadHandler := handlers.NewDownloadHandler(client, scheduler, bus)
	convertHandler := handlers.NewConvertHandler(client, scheduler, bus)
	progressHandler := handlers.NewProgressHandler(bus)
	proxyHandler := handlers.NewProxyHandler()
	healthHandler := handlers.NewHealthHandler(scheduler)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.Security())
	r.Use(middleware.CORS())
	r.Use(middleware.GlobalRateLimit())

	setupRoutes(r, hub, analyzeHandler, queueHandler, downloadHandler, convertHandler, progressHandler, proxyHandler, healthHandler)

	log.Printf("mediapipe server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Printf("server exited: %v", err)
		return err
	}
	return nil
}

func setupRoutes(
	r *gin.Engine,
	hub websocket.Hub,
	analyzeHandler *handlers.AnalyzeHandler,
	queueHandler *handlers.QueueHandler,
	downloadHandler *handlers.DownloadHandler,
	convertHandler *handlers.ConvertHandler,
	progressHandler *handlers.ProgressHandler,
	proxyHandler *handlers.ProxyHandler,
	healthHandler *handlers.HealthHandler,
) {
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/stats", healthHandler.Stats)

	r.POST("/analyze", middleware.AnalyzeRateLimit(), analyzeHandler.Analyze)
	r.POST("/analyze/batch", middleware.AnalyzeRateLimit(), analyzeHandler.AnalyzeBatch)

	queueGroup := r.Group("/queue")
	queueGroup.Use(middleware.QueueStatusRateLimit())
	{
		queueGroup.POST("/download", queueHandler.QueueDownload)
		queueGroup.POST("/convert", queueHandler.QueueConvert)
		queueGroup.GET("", queueHandler.GetQueueState)
		queueGroup.GET("/:jobId", queueHandler.GetJob)
		queueGroup.POST("/:jobId/cancel", queueHandler.CancelJob)
	}

	r.GET("/download", middleware.DownloadRateLimit(), downloadHandler.Download)
	r.POST("/convert", middleware.ConvertRateLimit(), convertHandler.Convert)

	r.GET("/progress/:downloadId", progressHandler.Stream)
	r.GET("/progress/:downloadId/status", progressHandler.Status)
	r.POST("/download/:downloadId/cancel", progressHandler.Cancel)

	r.GET("/proxy/image", proxyHandler.Image)

	r.GET("/ws/queue", func(c *gin.Context) {
		upgrader := websocket.GetUpgrader()
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket: dashboard upgrade failed: %v", err)
			return
		}
		client := websocket.NewClient(hub, conn)
		hub.RegisterClient(client)
		client.StartPumps()
	})
}
