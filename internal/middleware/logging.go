package middleware

import (
	"strings"
	"time"

	"holdem-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextRequestIDKey = "requestID"
	HeaderRequestID     = "X-Request-ID"
)

// RequestLogger tags every request with an id and logs it once served.
// A caller-supplied X-Request-ID is kept.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("requestID", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Log.Error("request", fields...)
		case status >= 400:
			logger.Log.Warn("request", fields...)
		default:
			logger.Log.Debug("request", fields...)
		}
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestIDKey)
}
