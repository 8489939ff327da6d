package routes

import (
	"net/http"

	"spotfix-widget-service/internal/config"
	"spotfix-widget-service/internal/logger"
	"spotfix-widget-service/internal/sitecheck"
	"spotfix-widget-service/internal/snippet"
	"spotfix-widget-service/internal/status"
	"spotfix-widget-service/internal/store"
	"spotfix-widget-service/internal/telemetry"
	"spotfix-widget-service/middleware"
	"spotfix-widget-service/models"
	"spotfix-widget-service/utils"

	"github.com/gin-gonic/gin"
)

// UpdateSettingsRequest is the admin settings payload. Absent visibility
// keeps the stored value.
type UpdateSettingsRequest struct {
	Code       string `json:"code"`
	Visibility string `json:"visibility"`
}

// SetupSettingsRoutes wires the admin settings and status endpoints.
func SetupSettingsRoutes(router *gin.Engine, cfg *config.Config, st store.Store, checker *status.Checker, metrics *telemetry.Metrics, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	api.Use(authMiddleware.RequireRole("admin"))

	api.GET("/settings", handleGetSettings(st))
	api.PUT("/settings", handleUpdateSettings(cfg, st, checker, metrics))
	api.POST("/settings/status", handleCheckStatus(st, checker, metrics))
	api.POST("/settings/scan", handleScanSite(cfg, st))
}

func handleGetSettings(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := st.LoadSettings(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load settings", nil)
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

// handleUpdateSettings saves the widget code and visibility, then refreshes
// the status against the new code so the admin sees the outcome immediately.
func handleUpdateSettings(cfg *config.Config, st store.Store, checker *status.Checker, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		if cfg.DisallowInlineJS && req.Code != "" {
			utils.RespondWithError(c, http.StatusConflict, "configuration_error",
				"Inline JavaScript is disallowed on this site. The widget code cannot be saved.", nil)
			return
		}

		ctx := c.Request.Context()
		settings, err := st.LoadSettings(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load settings", nil)
			return
		}

		settings.Code = req.Code
		if req.Visibility != "" {
			visibility := models.Visibility(req.Visibility)
			if !visibility.Valid() {
				utils.RespondWithBadRequest(c, "Invalid visibility value", gin.H{
					"allowed": []string{"everyone", "logged_in", "admin"},
				})
				return
			}
			settings.Visibility = visibility
		}

		result := checker.Check(ctx, settings.Code)
		settings.Status = result.Status
		settings.Error = result.Error
		if metrics != nil {
			metrics.RecordStatusCheck(result.Status, "save")
		}

		if err := st.SaveSettings(ctx, settings); err != nil {
			utils.RespondWithInternalError(c, "Failed to save settings", nil)
			return
		}

		logger.Info("widget settings updated",
			"visibility", string(settings.Visibility),
			"status", settings.Status,
			"request_id", middleware.GetRequestID(c))

		c.JSON(http.StatusOK, settings)
	}
}

// handleCheckStatus re-runs the status check against the stored code and
// persists the outcome.
func handleCheckStatus(st store.Store, checker *status.Checker, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		settings, err := st.LoadSettings(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load settings", nil)
			return
		}

		result := checker.Check(ctx, settings.Code)
		settings.Status = result.Status
		settings.Error = result.Error
		if metrics != nil {
			metrics.RecordStatusCheck(result.Status, "manual")
		}

		if err := st.SaveSettings(ctx, settings); err != nil {
			utils.RespondWithInternalError(c, "Failed to save settings", nil)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleScanSite crawls the site and reports which pages carry the widget.
func handleScanSite(cfg *config.Config, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		settings, err := st.LoadSettings(ctx)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load settings", nil)
			return
		}

		params, ok := snippet.Parse(settings.Code, cfg.WidgetBundleURL)
		if !ok {
			utils.RespondWithBadRequest(c, "Widget code is not configured or invalid; nothing to scan for.", nil)
			return
		}

		result, err := sitecheck.ScanSite(sitecheck.ScanConfig{
			SiteURL:   cfg.SiteURL,
			ScriptURL: snippet.ScriptURL(params, cfg.WidgetBundleURL),
			BundleURL: cfg.WidgetBundleURL,
			MaxPages:  cfg.ScanMaxPages,
		})
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway, "scan_failed", err.Error(), nil)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
