// Package api implements the HTTP surface of the crawl coordinator:
// operator run management, the worker dispatch/report pair, and the stored
// config registry.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/crawlplane/internal/blob"
	"github.com/jonesrussell/crawlplane/internal/coordinator"
	"github.com/jonesrussell/crawlplane/internal/logger"
	"github.com/jonesrussell/crawlplane/internal/store"
)

const readHeaderTimeout = 10 * time.Second

// Deps carries the collaborators the handlers are built from.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Pages       store.PageStore
	Configs     store.ConfigStore
	Blobs       blob.Store
	Logger      logger.Interface

	// APIKey protects everything under /api. Empty disables authentication.
	APIKey string
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(deps Deps) *gin.Engine {
	// Disable Gin's default logging
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))
	router.Use(corsMiddleware())

	// Define public routes
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.NoRoute(func(c *gin.Context) {
		respondError(c, CodeNotFound, "route not found")
	})

	runsHandler := NewRunsHandler(deps.Coordinator, deps.Pages, deps.Configs, deps.Blobs, deps.Logger)
	workerHandler := NewWorkerHandler(deps.Coordinator, deps.Blobs, deps.Logger)
	configsHandler := NewConfigsHandler(deps.Coordinator, deps.Configs, deps.Logger)

	apiGroup := router.Group("/api")
	apiGroup.Use(authMiddleware(deps.APIKey))

	setupRunRoutes(apiGroup, runsHandler)
	setupWorkerRoutes(apiGroup, workerHandler)
	setupConfigRoutes(apiGroup, configsHandler)

	return router
}

// setupRunRoutes configures operator-facing run endpoints.
func setupRunRoutes(apiGroup *gin.RouterGroup, handler *RunsHandler) {
	runs := apiGroup.Group("/runs")
	runs.GET("", handler.ListRuns)

	run := runs.Group("/:runId")
	run.DELETE("", handler.DeleteRun)
	run.POST("/seed", handler.Seed)
	run.POST("/configure", handler.Configure)
	run.POST("/start", handler.Start)
	run.POST("/pause", handler.Pause)
	run.POST("/resume", handler.Resume)
	run.POST("/cancel", handler.Cancel)
	run.POST("/reset", handler.Reset)
	run.POST("/on-cron", handler.OnCron)
	run.GET("/stats", handler.Stats)
	run.GET("/status", handler.Status)
	run.GET("/errors", handler.Errors)
	run.GET("/pages", handler.ListPages)
	run.GET("/content", handler.GetContent)
}

// setupWorkerRoutes configures the worker dispatch/report pair. These are
// flat paths with the run id in the body, matching the worker client.
func setupWorkerRoutes(apiGroup *gin.RouterGroup, handler *WorkerHandler) {
	apiGroup.POST("/request-work", handler.RequestWork)
	apiGroup.POST("/report-result", handler.ReportResult)
}

// setupConfigRoutes configures stored-config CRUD endpoints.
func setupConfigRoutes(apiGroup *gin.RouterGroup, handler *ConfigsHandler) {
	configs := apiGroup.Group("/configs")
	configs.GET("", handler.ListConfigs)
	configs.POST("", handler.CreateConfig)
	configs.GET("/:id", handler.GetConfig)
	configs.PUT("/:id", handler.UpdateConfig)
	configs.DELETE("/:id", handler.DeleteConfig)
}

// loggingMiddleware creates a middleware that logs HTTP requests
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", statusCode,
			"latency", latency,
		)
	}
}

// corsMiddleware adds CORS headers to allow dashboard access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, "+
				"Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware rejects requests that do not carry the configured API key.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope{Error: errorBody{
				Code:    CodeUnauthorized,
				Message: "invalid or missing API key",
			}})
			return
		}

		c.Next()
	}
}

// ServerOptions carries the http.Server tuning the serve command reads from
// configuration.
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewHTTPServer wraps the router in an http.Server with the configured
// timeouts.
func NewHTTPServer(opts ServerOptions, deps Deps) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           SetupRouter(deps),
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
