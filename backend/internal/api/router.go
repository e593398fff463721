package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"content-graph/backend/internal/knowledge"
	"content-graph/backend/internal/metrics"
)

// Server exposes the knowledge engine over HTTP
type Server struct {
	engine  *knowledge.Engine
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewRouter builds the gin router with middleware and all routes registered.
// collector may be nil, in which case /metrics is not served.
func NewRouter(engine *knowledge.Engine, collector *metrics.Collector, log *zap.Logger) *gin.Engine {
	s := &Server{engine: engine, metrics: collector, log: log}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(s.instrument())
	router.Use(cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if collector != nil {
		router.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	api := router.Group("/api")
	{
		api.POST("/nodes", s.upsertNode)
		api.POST("/relationships", s.upsertRelationship)
		api.GET("/nodes/:id/related", s.relatedNodes)
		api.POST("/nodes/:id/similar", s.linkSimilar)
		api.GET("/recommendations/:type", s.recommendations)
		api.POST("/events", s.processEvent)
		api.GET("/stats", s.statistics)
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// instrument records request counts and latency by route template
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
