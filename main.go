// File: slotwise/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"

	"slotwise/config"
	"slotwise/cron"
	"slotwise/database"
	conflictRepo "slotwise/database/repository/conflict"
	customerRepo "slotwise/database/repository/customer"
	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/handlers"
	"slotwise/middleware"
	"slotwise/routes"
	"slotwise/services/notification"
	"slotwise/services/payment"
	"slotwise/services/reservation"
	"slotwise/utils"
)

// minutesFromMidnight parses "HH:MM" business-hour bounds.
func minutesFromMidnight(hhmm string, fallback int) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return fallback
	}
	return h*60 + m
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	database.InitDB()
	utils.InitCache()
	utils.InitLockClient()
	utils.FirebaseInit()
	stripe.Key = cfg.StripeSecretKey

	// repositories.
	mongoResRepo := reservationRepo.NewMongoReservationRepo()
	confRepo := conflictRepo.NewMongoConflictRepo()
	custRepo := customerRepo.NewMongoCustomerRepo()
	if err := mongoResRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure reservation indexes: %v", err)
	}
	resRepo := reservationRepo.NewCachedReservationRepo(
		mongoResRepo,
		reservationRepo.NewRedisReservationCache(utils.GetCacheClient()),
	)
	if err := confRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure conflict indexes: %v", err)
	}

	clock, err := reservation.NewBusinessClock(cfg.BusinessTimezone)
	if err != nil {
		logger.Sugar().Fatalf("main: invalid business timezone %q: %v", cfg.BusinessTimezone, err)
	}
	locker := reservation.NewRedisLocker(redislock.New(utils.GetLockClient()))

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	})

	// services.
	notifier := &notification.QueueNotifier{Client: asynqClient, Logger: logger}
	refundService := &payment.DefaultRefundService{
		Repo:  resRepo,
		Queue: asynqClient,
		Clock: clock,
		Policy: payment.RefundPolicy{
			FullRefundNotice: time.Duration(cfg.RefundFullNoticeHours) * time.Hour,
			HalfRefundNotice: time.Duration(cfg.RefundHalfNoticeHours) * time.Hour,
		},
		Logger: logger,
	}

	engine := &reservation.Engine{
		Repo:    resRepo,
		Locker:  locker,
		Clock:   clock,
		Refunds: refundService,
		Notify:  notifier,
		Logger:  logger,
	}
	detector := &reservation.Detector{
		Repo:           resRepo,
		Conflicts:      confRepo,
		Logger:         logger,
		DayStart:       minutesFromMidnight(cfg.BusinessDayStart, 9*60),
		DayEnd:         minutesFromMidnight(cfg.BusinessDayEnd, 21*60),
		ProbeIncrement: cfg.ProbeIncrementMinutes,
	}
	rescheduler := &reservation.Rescheduler{
		Repo:             resRepo,
		Detector:         detector,
		Locker:           locker,
		Clock:            clock,
		Notify:           notifier,
		Logger:           logger,
		MinNotice:        time.Duration(cfg.MinNoticeMinutes) * time.Minute,
		AlternativeLimit: cfg.AlternativeLimit,
	}
	resolver := &reservation.Resolver{
		Repo:             resRepo,
		Conflicts:        confRepo,
		Detector:         detector,
		Engine:           engine,
		Resched:          rescheduler,
		Clock:            clock,
		Logger:           logger,
		MinSplitDuration: cfg.MinSplitMinutes,
		AlternativeLimit: cfg.AlternativeLimit,
	}

	gracePolicy, err := reservation.NewGracePolicy(reservation.GraceConfig{
		Default: reservation.GraceWindows{
			ConfirmationExpiryHours: cfg.GraceConfirmationExpiryHours,
			CompletionGraceMinutes:  cfg.GraceCompletionMinutes,
			NoShowGraceMinutes:      cfg.GraceNoShowMinutes,
		},
	})
	if err != nil {
		logger.Sugar().Fatalf("main: invalid grace configuration: %v", err)
	}

	scheduler := &reservation.ProgressionScheduler{
		Repo:   resRepo,
		Engine: engine,
		Grace:  gracePolicy,
		Clock:  clock,
		Locker: locker,
		Logger: logger,
		Cfg: reservation.SchedulerConfig{
			Enabled:    cfg.SchedulerEnabled,
			Interval:   time.Duration(cfg.SchedulerIntervalMinutes) * time.Minute,
			BatchSize:  int64(cfg.SchedulerBatchSize),
			MaxRetries: cfg.SchedulerMaxRetries,
			RetryDelay: time.Duration(cfg.SchedulerRetryDelayMs) * time.Millisecond,
			RunBudget:  time.Duration(cfg.SchedulerRunBudgetSeconds) * time.Second,
		},
	}
	scheduler.Start(context.Background())

	reservationService := &reservation.DefaultReservationService{
		Repo:     resRepo,
		Engine:   engine,
		Detector: detector,
		Resched:  rescheduler,
		Locker:   locker,
		Clock:    clock,
		Logger:   logger,
	}

	// Background worker: refund execution and push delivery.
	fcmSender := &notification.FCMSender{
		Messaging: utils.FCMClient,
		Customers: custRepo,
		Logger:    logger,
	}
	worker := cron.NewWorker(fcmSender, logger)
	worker.Start()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	reservationHandler := handlers.NewReservationHandler(reservationService, logger)
	adminHandler := &handlers.AdminHandler{
		Scheduler: scheduler,
		Grace:     gracePolicy,
		Detector:  detector,
		Resolver:  resolver,
		Conflicts: confRepo,
		Clock:     clock,
		Logger:    logger,
	}
	routes.RegisterRoutes(router, reservationHandler, adminHandler)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	worker.Stop()
	if err := asynqClient.Close(); err != nil {
		logger.Sugar().Warnf("main: closing task client: %v", err)
	}
	if err := database.Disconnect(ctx); err != nil {
		logger.Sugar().Warnf("main: disconnecting MongoDB: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
