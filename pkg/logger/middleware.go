package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Middleware returns a Gin middleware that attaches a request-scoped logger
// and logs every completed request.
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		reqLogger := logger.WithRequestID(requestID)
		if userID, _ := c.Get("userId"); userID != nil {
			reqLogger = reqLogger.WithUserID(fmt.Sprintf("%v", userID))
		}

		c.Set("logger", reqLogger)

		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		method := c.Request.Method

		reqLogger.LogRequest(method, path, status, latency)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				reqLogger.LogError(err.Err, "request error",
					"method", method,
					"path", path,
					"error_type", err.Type,
				)
			}
		}
	}
}

// FromContext returns the request-scoped logger, falling back to the global
// instance when none was attached.
func FromContext(c *gin.Context) *Logger {
	if l, exists := c.Get("logger"); exists {
		if reqLogger, ok := l.(*Logger); ok {
			return reqLogger
		}
	}
	return GetGlobal()
}
