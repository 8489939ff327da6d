package routes

import (
	"net/http"
	"strconv"

	"spotfix-widget-service/middleware"
	"spotfix-widget-service/models"
	"spotfix-widget-service/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// SetupAuditRoutes wires the audit trail endpoints for the admin UI.
func SetupAuditRoutes(router *gin.Engine, auditLogger *models.AuditLogger, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	api.Use(authMiddleware.RequireRole("admin"))

	api.GET("/audit", handleQueryAudit(auditLogger))
	api.GET("/audit/verify", handleVerifyAudit(auditLogger))
}

func handleQueryAudit(auditLogger *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
		if pageSize < 1 || pageSize > 200 {
			pageSize = 50
		}

		filter := bson.M{}
		if resource := c.Query("resource"); resource != "" {
			filter["resource"] = resource
		}
		if action := c.Query("action"); action != "" {
			filter["action"] = action
		}

		events, total, err := auditLogger.QueryAuditLogs(filter, page, pageSize)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to query audit logs", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"events":    events,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	}
}

// handleVerifyAudit walks the hash chain and reports whether it is intact.
func handleVerifyAudit(auditLogger *models.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		intact, err := auditLogger.VerifyChain()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to verify audit chain", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"intact": intact})
	}
}
