package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/gateway"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// probePaths are polled by orchestrators and only logged at debug.
var probePaths = map[string]bool{"/health": true, "/ready": true}

// Logger writes one access line per request. The caller's key id is read
// after the handler chain so it reflects what Auth attached.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.RequestURI()),
			zap.String("caller", gateway.ClientFrom(c.Request.Context()).KeyID),
			zap.String("ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("request_id", GetRequestID(c)),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		case probePaths[c.Request.URL.Path]:
			level = zapcore.DebugLevel
		}
		logger.Log(level, c.Request.Method+" "+route, fields...)
	}
}
