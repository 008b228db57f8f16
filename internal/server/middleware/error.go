package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last handler error as an RFC 9457 problem tagged
// with the request path and id. Responses already written are left alone.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		requestID := GetRequestID(c)
		problem, known := api.AsProblem(c.Errors.Last().Err)
		switch {
		case !known:
			logger.Error("Unhandled error", zap.String("request_id", requestID), zap.Error(problem.Log))
		case problem.Log != nil:
			logger.Error("Internal error",
				zap.String("request_id", requestID),
				zap.Int("status", problem.Status),
				zap.Error(problem.Log),
			)
		}

		opts := []api.ProblemOption{api.WithExtension(requestIDKey, requestID)}
		if problem.Instance == "" {
			opts = append(opts, api.WithInstance(c.Request.URL.Path))
		}

		c.Header("Content-Type", "application/problem+json")
		c.AbortWithStatusJSON(problem.Status, problem.With(opts...))
	}
}
