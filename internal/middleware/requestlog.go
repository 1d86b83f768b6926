package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/logger"
)

type RequestLogger struct {
	log *logger.Logger
}

func NewRequestLogger(log *logger.Logger) *RequestLogger {
	return &RequestLogger{log: log.With("middleware", "RequestLogger")}
}

// Log records method, path, status and latency for every request. Webhook
// bodies are not logged; they carry client phone numbers and message text.
func (m *RequestLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			m.log.Error("request failed", fields...)
		} else {
			m.log.Info("request", fields...)
		}
	}
}
