package routes

import (
	"net/http"

	"spotfix-widget-service/internal/logger"
	"spotfix-widget-service/internal/provision"
	"spotfix-widget-service/internal/store"
	"spotfix-widget-service/middleware"
	"spotfix-widget-service/utils"

	"github.com/gin-gonic/gin"
)

// SetupProvisionRoutes wires the account provisioning endpoints.
func SetupProvisionRoutes(router *gin.Engine, st store.Store, orchestrator *provision.Orchestrator, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	api.Use(authMiddleware.RequireRole("admin"))

	api.GET("/account", handleGetAccount(st))
	api.POST("/account/create", handleCreateAccount(orchestrator))
	api.POST("/account/configure", handleConfigureAccount(orchestrator))
}

// handleGetAccount returns the provisioning state with secrets masked.
func handleGetAccount(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := st.LoadProvisioning(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load account state", nil)
			return
		}
		c.JSON(http.StatusOK, state.Masked())
	}
}

func handleCreateAccount(orchestrator *provision.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := orchestrator.CreateAccount(c.Request.Context())
		if err != nil {
			logger.Error("account creation failed",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(c))
			utils.RespondWithFault(c, err)
			return
		}

		logger.Info("account registration started",
			"email", result.Email,
			"request_id", middleware.GetRequestID(c))
		c.JSON(http.StatusOK, result)
	}
}

func handleConfigureAccount(orchestrator *provision.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := orchestrator.ConfigureAccount(c.Request.Context())
		if err != nil {
			logger.Error("account configuration failed",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(c))
			utils.RespondWithFault(c, err)
			return
		}

		logger.Info("account configured",
			"account_id", result.AccountID,
			"project_id", result.ProjectID,
			"request_id", middleware.GetRequestID(c))
		c.JSON(http.StatusOK, result)
	}
}
