package middleware

import (
	"context"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"goodies-platform/pkg/logger"
)

const RequestIDHeader = "X-Request-Id"

// RequestIDMiddleware reuses an inbound X-Request-Id or mints one, echoes
// it on the response, and stores it on the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = newRequestID()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIdKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// newRequestID is a uuid without hyphens.
func newRequestID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
