package service

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger logs every request after it has been handled.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// requestMetrics counts requests and measures their duration per route.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		metrics.GetOrCreateCounter(fmt.Sprintf(`http_requests_total{method=%q,path=%q,status="%d"}`,
			method, route, c.Writer.Status())).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`http_request_duration_seconds{method=%q,path=%q}`,
			method, route)).UpdateDuration(start)
	}
}

// writeMetrics responds with all metrics in the Prometheus text format.
func writeMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	c.Status(200)
	metrics.WritePrometheus(c.Writer, true)
}
