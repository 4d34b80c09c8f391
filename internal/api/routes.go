package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/api/handlers"
)

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Cache-Control", "no-store")
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// RegisterRoutes mounts the share API, health probe and metrics scrape.
func RegisterRoutes(r *gin.Engine, h *handlers.ShareHandler, health gin.HandlerFunc, metrics *Metrics, allowedOrigin string) {
	r.Use(corsMiddleware(allowedOrigin))
	r.Use(securityHeaders())
	r.Use(metrics.Middleware())

	api := r.Group("/api")
	{
		api.GET("/health", health)

		api.POST("/upload", h.Upload)
		api.POST("/upload/:shareId/complete", h.CompleteUpload)

		api.GET("/files/:shareId/info", h.FileInfo)
		api.POST("/files/:shareId/download", h.RequestDownload) // step 1: token
		api.GET("/files/:shareId/download", h.RedeemToken)      // step 2: transfer URL
		api.DELETE("/files/:shareId", h.Delete)
	}

	r.GET("/metrics", metrics.Handler())
}
