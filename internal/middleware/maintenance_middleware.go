package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"goodies-platform/internal/transport/httpdto"
)

type MaintenanceFlag interface {
	Maintenance() bool
}

// Providers and operators keep working while the public API is paused.
var maintenanceExempt = []string{"/webhooks", "/v1/admin", "/health", "/ping"}

// Maintenance answers 503 for every non-exempt path while the flag is on.
// The flag is read per request, so a toggle takes effect immediately.
func Maintenance(flag MaintenanceFlag) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !flag.Maintenance() || isMaintenanceExempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		c.Header("Retry-After", "120")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			httpdto.NewErrorResponse("service is under maintenance", "MAINTENANCE"))
	}
}

func isMaintenanceExempt(path string) bool {
	for _, prefix := range maintenanceExempt {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
