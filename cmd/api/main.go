package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushq/admissions-api/api/swagger"
	"github.com/campushq/admissions-api/internal/handler"
	"github.com/campushq/admissions-api/internal/middleware"
	"github.com/campushq/admissions-api/internal/models"
	"github.com/campushq/admissions-api/internal/repository"
	"github.com/campushq/admissions-api/internal/service"
	"github.com/campushq/admissions-api/pkg/cache"
	"github.com/campushq/admissions-api/pkg/config"
	"github.com/campushq/admissions-api/pkg/database"
	"github.com/campushq/admissions-api/pkg/jobs"
	"github.com/campushq/admissions-api/pkg/logger"
	corsmiddleware "github.com/campushq/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/admissions-api/pkg/middleware/requestid"
	"github.com/campushq/admissions-api/pkg/storage"
)

// @title CampusHQ Admissions API
// @version 1.0.0
// @description Back-office API for the admissions office
// @BasePath /api/v1
// @schemes http

const (
	overdueSweepInterval = time.Hour
	receiptRetention     = 30 * 24 * time.Hour
	resumeSweepLimit     = 100
)

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional. Without it the dashboard recomputes on every read.
	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}

	userRepo := repository.NewUserRepository(db)
	enquiryRepo := repository.NewEnquiryRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	commRepo := repository.NewCommunicationRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	conversionRepo := repository.NewConversionRepository(db)
	receiptJobRepo := repository.NewReceiptJobRepository(db)
	txRunner := repository.NewTxRunner(db)

	store, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to init receipt storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "admissions-api",
		Audience:           []string{"admissions-office"},
	})
	sequenceSvc := service.NewSequenceService(sequenceRepo, logr)
	enquirySvc := service.NewEnquiryService(enquiryRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, feeRepo, sequenceSvc, txRunner, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, userRepo, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, sequenceSvc, txRunner, userRepo, validate, logr)
	commSvc := service.NewCommunicationService(commRepo, enquiryRepo, studentRepo, validate, logr)
	conversionSvc := service.NewConversionService(conversionRepo, enquiryRepo, studentRepo, courseRepo,
		commRepo, sequenceSvc, txRunner, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(enquiryRepo, studentRepo, feeRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	receiptSvc := service.NewReceiptService(receiptJobRepo, feeRepo, store, signer, metricsSvc, logr)

	receiptQueue := jobs.NewQueue("receipts", receiptSvc.Process, jobs.QueueConfig{
		Workers:    cfg.Receipts.WorkerConcurrency,
		BufferSize: 64,
		MaxRetries: cfg.Receipts.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	receiptSvc.AttachQueue(receiptQueue)
	receiptQueue.Start(ctx)

	// Pick up conversions interrupted by a previous crash.
	if err := conversionSvc.ResumeIncomplete(ctx, resumeSweepLimit); err != nil {
		logr.Error("conversion resume sweep failed", zap.Error(err))
	}

	go runPeriodic(ctx, overdueSweepInterval, func() {
		if _, err := feeSvc.SweepOverdue(ctx); err != nil {
			logr.Error("overdue sweep failed", zap.Error(err))
		}
	})
	go runPeriodic(ctx, cfg.Receipts.CleanupInterval, func() {
		if _, err := receiptSvc.Cleanup(ctx, receiptRetention); err != nil {
			logr.Error("receipt cleanup failed", zap.Error(err))
		}
	})

	authHandler := handler.NewAuthHandler(authSvc)
	enquiryHandler := handler.NewEnquiryHandler(enquirySvc, conversionSvc, dashboardSvc, metricsSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, dashboardSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	feeHandler := handler.NewFeeHandler(feeSvc, receiptSvc, dashboardSvc, metricsSvc)
	commHandler := handler.NewCommunicationHandler(commSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Expose)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		session := auth.Group("", middleware.JWT(authSvc))
		session.POST("/logout", authHandler.Logout)
		session.PUT("/password", authHandler.ChangePassword)
		session.GET("/me", authHandler.Me)
	}

	// Token-signed; the token itself authorizes the download.
	api.GET("/receipts/download", feeHandler.DownloadReceipt)

	protected := api.Group("", middleware.JWT(authSvc))

	enquiries := protected.Group("/enquiries", middleware.RequireRoles(models.RoleAdmin, models.RoleCounselor))
	{
		enquiries.GET("", enquiryHandler.List)
		enquiries.POST("", enquiryHandler.Create)
		enquiries.GET("/:id", enquiryHandler.Get)
		enquiries.PUT("/:id", enquiryHandler.Update)
		enquiries.PATCH("/:id/status", enquiryHandler.UpdateStatus)
		enquiries.DELETE("/:id", enquiryHandler.Delete)
		enquiries.GET("/:id/for-conversion", enquiryHandler.Prefill)
		enquiries.POST("/:id/convert",
			middleware.Audit(userRepo, models.AuditActionConversion, "enquiry"),
			enquiryHandler.Convert)
	}

	students := protected.Group("/students", middleware.RequireRoles(models.RoleAdmin, models.RoleCounselor, models.RoleAccountant))
	{
		students.GET("", studentHandler.List)
		students.POST("", studentHandler.Create)
		students.GET("/export", studentHandler.ExportCSV)
		students.GET("/:id", studentHandler.Get)
		students.PUT("/:id", studentHandler.Update)
		students.PATCH("/:id/status", studentHandler.UpdateStatus)
		students.DELETE("/:id", studentHandler.Delete)
		students.GET("/:id/fees", studentHandler.FeeSummary)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/active/list", courseHandler.ActiveList)
		courses.GET("/:id", courseHandler.Get)

		manage := courses.Group("", middleware.RequireRoles(models.RoleAdmin))
		manage.POST("", courseHandler.Create)
		manage.PUT("/:id", courseHandler.Update)
		manage.POST("/:id/seats/adjust", courseHandler.AdjustSeats)
		manage.PATCH("/:id/seats", courseHandler.SetSeats)
		manage.DELETE("/:id", courseHandler.Delete)
	}

	fees := protected.Group("/fees", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant))
	{
		fees.GET("", feeHandler.List)
		fees.POST("", feeHandler.Create)
		fees.GET("/pending/all", feeHandler.PendingAll)
		fees.GET("/student/:id", studentHandler.FeeSummary)
		fees.GET("/:id", feeHandler.Get)
		fees.PUT("/:id", feeHandler.Update)
		fees.DELETE("/:id", feeHandler.Delete)
		fees.POST("/:id/receipt", feeHandler.EnqueueReceipt)
	}

	receipts := protected.Group("/receipts", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant))
	{
		receipts.GET("/:id", feeHandler.ReceiptStatus)
		receipts.GET("/:id/download", feeHandler.ReceiptDownloadToken)
	}

	communications := protected.Group("/communications", middleware.RequireRoles(models.RoleAdmin, models.RoleCounselor))
	{
		communications.GET("", commHandler.List)
		communications.POST("", commHandler.Create)
		communications.GET("/follow-ups/pending", commHandler.PendingFollowUps)
		communications.GET("/:id", commHandler.Get)
		communications.PUT("/:id", commHandler.Update)
		communications.PATCH("/:id/follow-up", commHandler.CompleteFollowUp)
		communications.DELETE("/:id", commHandler.Delete)
	}

	dashboard := protected.Group("/dashboard")
	{
		dashboard.GET("/stats", dashboardHandler.Stats)
		dashboard.GET("/recent-activities", dashboardHandler.RecentActivity)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	receiptQueue.Stop()
	logr.Info("shutdown complete")
}

// runPeriodic invokes fn every interval until ctx is cancelled.
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
