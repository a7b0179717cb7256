package middleware

import (
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error when the handler did
// not write a response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Error(c.Request.Context(), "request error", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		status := services.HTTPStatus(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), ErrorCode(status)))
	}
}
