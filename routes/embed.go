package routes

import (
	"net/http"

	"spotfix-widget-service/internal/config"
	"spotfix-widget-service/internal/store"
	"spotfix-widget-service/internal/telemetry"
	"spotfix-widget-service/middleware"
	"spotfix-widget-service/models"

	"github.com/gin-gonic/gin"
)

const embedContentType = "application/javascript; charset=utf-8"

// SetupEmbedRoutes wires the public snippet endpoint. The site's pages load
// it on every view, so it must never error: any condition that blocks the
// widget serves an empty comment with 200 instead.
func SetupEmbedRoutes(router *gin.Engine, cfg *config.Config, st store.Store, metrics *telemetry.Metrics, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/embed/spotfix.js", authMiddleware.OptionalAuth(), handleEmbedScript(cfg, st, metrics))
}

func handleEmbedScript(cfg *config.Config, st store.Store, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		serve := func(decision, body string) {
			if metrics != nil {
				metrics.RecordSnippetServe(decision)
			}
			c.Data(http.StatusOK, embedContentType, []byte(body))
		}

		if cfg.DisallowInlineJS {
			serve("disallowed", "")
			return
		}

		settings, err := st.LoadSettings(c.Request.Context())
		if err != nil {
			// Fail silent: a storage hiccup must not break the host pages.
			serve("error", "/* spotfix unavailable */\n")
			return
		}

		if settings.Code == "" {
			serve("unconfigured", "/* spotfix not configured */\n")
			return
		}

		if !visibilityAllows(settings.Visibility, c) {
			serve("hidden", "/* spotfix hidden */\n")
			return
		}

		serve("served", settings.Code)
	}
}

func visibilityAllows(visibility models.Visibility, c *gin.Context) bool {
	switch visibility {
	case models.VisibilityEveryone:
		return true
	case models.VisibilityLoggedIn:
		return middleware.IsAuthenticated(c)
	case models.VisibilityAdmin:
		return middleware.GetRole(c) == "admin"
	default:
		return true
	}
}

// SetupHealthRoutes wires the liveness endpoint.
func SetupHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
