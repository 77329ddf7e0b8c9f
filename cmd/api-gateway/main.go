package main

import (
	"context"
	"errors"
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

	_ "github.com/vidyahq/fees-api/api/swagger"
	"github.com/vidyahq/fees-api/internal/handler"
	"github.com/vidyahq/fees-api/internal/middleware"
	"github.com/vidyahq/fees-api/internal/models"
	"github.com/vidyahq/fees-api/internal/repository"
	"github.com/vidyahq/fees-api/internal/scheduler"
	"github.com/vidyahq/fees-api/internal/service"
	"github.com/vidyahq/fees-api/internal/sms"
	"github.com/vidyahq/fees-api/pkg/cache"
	"github.com/vidyahq/fees-api/pkg/config"
	"github.com/vidyahq/fees-api/pkg/database"
	"github.com/vidyahq/fees-api/pkg/jobs"
	"github.com/vidyahq/fees-api/pkg/logger"
	corsmiddleware "github.com/vidyahq/fees-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyahq/fees-api/pkg/middleware/requestid"
	"github.com/vidyahq/fees-api/pkg/storage"
)

// @title School Fees API
// @version 1.0.0
// @description Fee administration backend: monthly fee generation, payments and SMS reminders
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()
	now := func() time.Time { return time.Now().UTC() }

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	structureRepo := repository.NewFeeStructureRepository(db)
	feeRepo := repository.NewMonthlyFeeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	smsLogRepo := repository.NewSMSLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Outbound SMS.
	var sender sms.Sender = sms.NopSender{}
	if cfg.SMS.Enabled {
		sender = sms.NewGatewayClient(cfg.SMS, logr)
	}

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	structureSvc := service.NewFeeStructureService(structureRepo, validate, logr)
	notificationSvc := service.NewNotificationService(sender, smsLogRepo, feeRepo, logr)
	feeSvc := service.NewFeeService(studentRepo, structureRepo, academicRepo, feeRepo, notificationSvc, metricsSvc, cfg.Fees, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, reminderRepo, metricsSvc, now, validate, logr)
	reminderSvc := service.NewReminderService(feeRepo, reminderRepo, smsLogRepo, sender, metricsSvc, cfg.Reminders, logr)
	statsSvc := service.NewReminderStatsService(reminderRepo, cacheRepo, cfg.Stats.CacheTTL, now, logr)
	reportSvc := service.NewReportService(feeRepo, feeRepo, paymentRepo, store, signer, now, logr)

	// Background SMS queue.
	queue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers: cfg.SMS.Workers,
		Logger:  logr,
	})
	notificationSvc.SetQueue(queue)

	// Calendar jobs.
	sched := scheduler.New(cfg.Scheduler, reminderSvc, feeSvc, reportSvc, cfg.Reports.RetentionTTL, cacheRepo, metricsSvc, now, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	structureHandler := handler.NewFeeStructureHandler(structureSvc)
	feeHandler := handler.NewFeeHandler(feeSvc, cacheRepo, cfg.Scheduler.LockTTL)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, reportSvc)
	reminderHandler := handler.NewReminderHandler(reminderSvc, statsSvc, cacheRepo, cfg.Scheduler.LockTTL)
	reportHandler := handler.NewReportHandler(reportSvc)
	opsHandler := handler.NewOpsHandler(metricsSvc, db, redisClient, sched)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", opsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.GET("/jobs", opsHandler.Jobs)

		authed.GET("/students", studentHandler.List)
		authed.GET("/students/:id", studentHandler.Get)
		authed.POST("/students", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), studentHandler.Create)
		authed.PUT("/students/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleClerk), studentHandler.Update)
		authed.DELETE("/students/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Withdraw)

		authed.GET("/fee-structures", structureHandler.List)
		authed.GET("/fee-structures/lookup", structureHandler.Get)
		authed.PUT("/fee-structures", middleware.RequireRoles(models.RoleAdmin), structureHandler.Upsert)

		authed.GET("/fees", feeHandler.List)
		authed.GET("/fees/:id", feeHandler.Get)
		authed.POST("/fees/generate", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant), feeHandler.Generate)

		authed.GET("/payments", paymentHandler.List)
		authed.GET("/payments/:id", paymentHandler.Get)
		authed.GET("/payments/:id/receipt", paymentHandler.Receipt)
		authed.POST("/payments", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant, models.RoleClerk), paymentHandler.Record)

		authed.GET("/reminders", reminderHandler.List)
		authed.GET("/reminders/stats", reminderHandler.Stats)
		authed.POST("/reminders/sweep", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant), reminderHandler.RunSweep)

		authed.POST("/reports/defaulters", middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant), reportHandler.Defaulters)
	}
	// Downloads authenticate through the signed token itself.
	api.GET("/reports/download", reportHandler.Download)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	sched.Start(ctx)
	defer sched.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
