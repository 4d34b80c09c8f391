package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors the service exposes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	DownloadsGranted prometheus.Counter
	RateLimitDenials prometheus.Counter
	InfectedDetected prometheus.Counter
	SharesCreated    prometheus.Counter
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		DownloadsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "share_downloads_granted_total",
			Help: "Download URLs issued",
		}),
		RateLimitDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "share_rate_limit_denials_total",
			Help: "Requests denied by a rate limiter",
		}),
		InfectedDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "share_infected_files_total",
			Help: "Files removed after a malware verdict",
		}),
		SharesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "share_uploads_created_total",
			Help: "Shares created",
		}),
	}

	registry.MustRegister(
		m.requestTotal, m.requestDuration,
		m.DownloadsGranted, m.RateLimitDenials, m.InfectedDetected, m.SharesCreated,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(m.handler)
}

// Middleware records per-request counters and latencies.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
