package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotfix-widget-service/internal/config"
	"spotfix-widget-service/internal/logger"
	"spotfix-widget-service/internal/provision"
	"spotfix-widget-service/internal/remote"
	"spotfix-widget-service/internal/status"
	"spotfix-widget-service/internal/store"
	"spotfix-widget-service/internal/telemetry"
	"spotfix-widget-service/middleware"
	"spotfix-widget-service/models"
	"spotfix-widget-service/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is best-effort; the service runs without a collector.
	shutdownTracer, err := telemetry.InitTracer("spotfix-widget-service")
	if err != nil {
		logger.Warn("tracer init failed, continuing without tracing", "error", err.Error())
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics init failed, continuing without metrics", "error", err.Error())
		metrics = nil
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)
	st := store.NewMongoStore(db)
	auditLogger := models.NewAuditLogger(db)

	// Redis backs rate limiting only; a failed connection degrades to
	// unlimited requests rather than refusing to start.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "error", err.Error())
		rdb = nil
	}

	client := remote.NewClient(time.Duration(cfg.APITimeout) * time.Second)
	checker := status.NewChecker(client, cfg.SiteURL, cfg.WidgetBundleURL,
		time.Duration(cfg.ProbeTimeout)*time.Second,
		time.Duration(cfg.HomepageTimeout)*time.Second)
	orchestrator := provision.NewOrchestrator(client, st, provision.Options{
		CleanTalkURL: cfg.CleanTalkAPIURL,
		DoBoardURL:   cfg.DoBoardAPIURL,
		BundleURL:    cfg.WidgetBundleURL,
		AdminEmail:   cfg.AdminEmail,
		SiteName:     cfg.SiteName,
		ProjectName:  cfg.ProjectName,
		Metrics:      metrics,
	})

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("spotfix-widget-service"))
	router.Use(middleware.RequestIDMiddleware())
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}
	router.Use(middleware.AuditMiddleware(auditLogger))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg)

	// Setup routes
	routes.SetupHealthRoutes(router)
	routes.SetupEmbedRoutes(router, cfg, st, metrics, authMiddleware)
	routes.SetupSettingsRoutes(router, cfg, st, checker, metrics, authMiddleware)
	routes.SetupProvisionRoutes(router, st, orchestrator, authMiddleware)
	routes.SetupAuditRoutes(router, auditLogger, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "site_url", cfg.SiteURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
