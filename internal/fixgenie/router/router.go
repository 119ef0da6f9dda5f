// Package router wires the HTTP routes of the FixGenie service.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/fixgenie/internal/fixgenie/handler"
)

// Handlers bundles the endpoint handlers the router mounts.
type Handlers struct {
	Query  *handler.QueryHandler
	Ingest *handler.IngestHandler
	Admin  *handler.AdminHandler
}

// New builds the gin engine with all routes and middleware.
func New(h Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", h.Admin.Healthz)
	engine.GET("/metrics", h.Admin.Metrics)

	v1 := engine.Group("/v1")
	{
		v1.POST("/query", h.Query.Query)

		v1.POST("/feedback", h.Query.SubmitFeedback)
		v1.GET("/feedback", h.Query.ListFeedback)
		v1.GET("/searches", h.Query.ListSearches)

		v1.POST("/ingest", h.Ingest.Ingest)
		v1.GET("/incidents/:id", h.Ingest.GetIncident)
		v1.DELETE("/incidents/:id", h.Ingest.DeleteIncident)
		v1.POST("/audit", h.Ingest.Audit)

		v1.GET("/stats", h.Admin.Stats)
	}

	return engine
}

// requestLogger logs one line per request through the global logger.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"client_ip", c.ClientIP(),
		)
	}
}
