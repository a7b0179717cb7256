package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	goodies_errors "goodies-platform/pkg/errors"
)

const adminSubjectKey = "admin_subject"

// AdminAuth requires a bearer token minted by AdminAuthService.
func AdminAuth(service *services.AdminAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := service.ParseToken(extractBearer(c))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, goodies_errors.ErrForbidden) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, httpdto.NewErrorResponse(http.StatusText(status), ErrorCode(status)))
			return
		}
		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

// AdminSubject returns the subject of the token checked by AdminAuth.
func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
