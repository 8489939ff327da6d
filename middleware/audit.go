package middleware

import (
	"strings"

	"spotfix-widget-service/models"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware records admin API actions after the handler ran, so the
// outcome is known. Reads of the settings record are logged too: they reveal
// the stored widget code.
func AuditMiddleware(auditLogger *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, resource := classifyRequest(c.Request.Method, c.FullPath())
		if action == "" {
			return
		}

		status := c.Writer.Status()
		event := &models.AuditEvent{
			UserID:    GetUserID(c),
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: GetRequestID(c),
			Success:   status < 400,
		}
		if status >= 400 {
			event.ErrorMessage = c.Errors.String()
		}

		auditLogger.LogAsync(event)
	}
}

func classifyRequest(method, path string) (action, resource string) {
	switch {
	case path == "/api/settings" && method == "GET":
		return "READ", "settings"
	case path == "/api/settings" && method == "PUT":
		return "UPDATE", "settings"
	case path == "/api/settings/status" || path == "/api/settings/scan":
		return "CHECK", "status"
	case strings.HasPrefix(path, "/api/account"):
		if method == "GET" {
			return "READ", "account"
		}
		return "PROVISION", "account"
	default:
		return "", ""
	}
}
