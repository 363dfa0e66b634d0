package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/rotaops/rota-api/api/swagger"
	"github.com/rotaops/rota-api/internal/handler"
	"github.com/rotaops/rota-api/internal/middleware"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/schedule"
	"github.com/rotaops/rota-api/internal/service"
	"github.com/rotaops/rota-api/internal/store"
	"github.com/rotaops/rota-api/pkg/config"
	"github.com/rotaops/rota-api/pkg/jobs"
	"github.com/rotaops/rota-api/pkg/logger"
	corsmiddleware "github.com/rotaops/rota-api/pkg/middleware/cors"
	reqidmiddleware "github.com/rotaops/rota-api/pkg/middleware/requestid"
	"github.com/rotaops/rota-api/pkg/storage"
)

// @title Rota API
// @version 1.0.0
// @description Workforce shift scheduling: roster, weekly templates, generation and exports
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	weekStart, err := models.ParseWeekday(cfg.Scheduling.DefaultWeekStart)
	if err != nil {
		logr.Sugar().Fatalw("invalid default week start", "value", cfg.Scheduling.DefaultWeekStart, "error", err)
	}
	defaults := models.DefaultScheduleSettings(weekStart, cfg.Scheduling.DefaultMinRestHours, cfg.Scheduling.DefaultTimezone)

	st, err := store.Open(cfg.Store.Path, defaults, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open store", "path", cfg.Store.Path, "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	rosterSvc := service.NewRosterService(st, validate, logr)
	settingsSvc := service.NewSettingsService(st, logr)
	scheduleSvc := service.NewScheduleService(st, schedule.NewEngine(cfg.Scheduling.AttemptFactor), metricsSvc, validate, logr)

	authSvc := service.NewAuthService(st, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "rota-api",
		Audience:           []string{"rota-clients"},
	})
	if err := authSvc.EnsureAdmin(context.Background(), cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		logr.Sugar().Fatalw("failed to bootstrap admin account", "error", err)
	}

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "dir", cfg.Reports.StorageDir, "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	var exportDelimiter rune
	if cfg.Export.CSVDelimiter != "" {
		exportDelimiter = []rune(cfg.Export.CSVDelimiter)[0]
	}
	exportSvc := service.NewExportService(st, files, signer, service.ExportConfig{
		ResultTTL:    cfg.Reports.SignedURLTTL,
		CSVDelimiter: exportDelimiter,
	}, logr, nil, nil)

	// Background lifecycle context: cancelling it stops the report
	// cleanup loop and the queue workers.
	rootCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	var reportSvc *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		registry := service.NewJobRegistry(cfg.Reports.SignedURLTTL)
		worker := service.NewReportWorker(registry, exportSvc, metricsSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(rootCtx)

		reportSvc = service.NewReportService(st, registry, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.StartCleanup(rootCtx)
	}

	var autoplan *service.AutoPlanService
	if cfg.AutoPlan.Enabled {
		autoplan = service.NewAutoPlanService(scheduleSvc, cfg.AutoPlan.Spec, logr)
		if err := autoplan.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start auto planning", "error", err)
		}
	}

	authHandler := handler.NewAuthHandler(authSvc)
	employeeHandler := handler.NewEmployeeHandler(rosterSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, st)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	planners := middleware.RequireRoles(models.RoleAdmin, models.RolePlanner)
	allRoles := middleware.RequireRoles(models.RoleAdmin, models.RolePlanner, models.RoleViewer)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	employees := secured.Group("/employees")
	employees.GET("", allRoles, employeeHandler.List)
	employees.GET("/:id", allRoles, employeeHandler.Get)
	employees.POST("", planners, employeeHandler.Create)
	employees.PUT("/:id", planners, employeeHandler.Update)
	employees.DELETE("/:id", planners, employeeHandler.Delete)

	settings := secured.Group("/settings")
	settings.GET("", allRoles, settingsHandler.Get)
	settings.PUT("", planners, settingsHandler.Replace)

	schedules := secured.Group("/schedules")
	schedules.POST("/generate", planners, scheduleHandler.Generate)
	schedules.GET("/current", allRoles, scheduleHandler.Current)
	schedules.GET("/export.csv", allRoles, scheduleHandler.ExportCSV)
	schedules.POST("/shifts/:id/assignments", planners, scheduleHandler.AddAssignment)
	schedules.DELETE("/shifts/:id/assignments/:employeeId", planners, scheduleHandler.RemoveAssignment)

	system := secured.Group("/system")
	system.GET("/metrics", allRoles, metricsHandler.Snapshot)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc, logr)
		r.GET("/downloads/:token", reportHandler.DownloadReport)

		reports := secured.Group("/reports")
		reports.POST("", planners, reportHandler.GenerateReport)
		reports.GET("/:id", allRoles, reportHandler.ReportStatus)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Sugar().Infow("shutting down", "signal", sig.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	if autoplan != nil {
		autoplan.Stop()
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	cancelBackground()

	logr.Sugar().Infow("server stopped")
}
