// Package middleware holds the gin middleware shared across the consent
// core's HTTP surface, adapted from gauth-demo-app/web/backend/middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hushh-labs/consent-core/internal/tracing"
)

// Logger logs each request as a single structured JSON line.
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logger.WithFields(logrus.Fields{
			"client_ip":   param.ClientIP,
			"timestamp":   param.TimeStamp.Format(time.RFC3339),
			"method":      param.Method,
			"path":        param.Path,
			"status_code": param.StatusCode,
			"latency":     param.Latency,
			"user_agent":  param.Request.UserAgent(),
			"error":       param.ErrorMessage,
		}).Info("http request")
		return ""
	})
}

// Tracing opens one span per request, named after the route's handler
// method/path, and records the final status code as an attribute.
func Tracing(tp *tracing.TracerProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tp == nil {
			c.Next()
			return
		}
		ctx, span := tp.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(tracing.AttributeStatus.Int(c.Writer.Status()))
	}
}

// RequestID assigns (or propagates) a request id, surfaced both as a
// response header and, under the gin context key "RequestID", in
// request-scoped logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("RequestID", id)
		c.Next()
	}
}
