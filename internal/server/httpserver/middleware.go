package httpserver

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/limiter"
	"github.com/and161185/phishtrack/internal/metrics"
)

const kindKey = "phishtrack.kind"

// Recovery turns handler panics into 500 responses and logs the stack.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// Logging writes one line per request and counts it by route kind and status.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kind := c.GetString(kindKey)
		if kind == "" {
			kind = "other"
		}
		metrics.Requests.WithLabelValues(kind, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("host", c.Request.Host),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("dur", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		log.Info("request", fields...)
	}
}

// Admission runs the rest of the chain while holding a gate permit.
func Admission(gate *limiter.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := gate.Do(c.Request.Context(), func() error {
			metrics.InFlight.Inc()
			defer metrics.InFlight.Dec()
			c.Next()
			return nil
		})
		if err != nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
		}
	}
}
