// Package main runs the medical camp HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/medcamp-hub/backend/config"
	"github.com/medcamp-hub/backend/internal/analytics"
	"github.com/medcamp-hub/backend/internal/auth"
	"github.com/medcamp-hub/backend/internal/camps"
	"github.com/medcamp-hub/backend/internal/feedbacks"
	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/internal/payments"
	"github.com/medcamp-hub/backend/internal/registrations"
	"github.com/medcamp-hub/backend/internal/users"
	"github.com/medcamp-hub/backend/internal/worker"
	"github.com/medcamp-hub/backend/pkg/database"
	"github.com/medcamp-hub/backend/pkg/docstore"
	"github.com/medcamp-hub/backend/pkg/queue"
	"github.com/medcamp-hub/backend/pkg/redis"
	"github.com/medcamp-hub/backend/pkg/response"
	"github.com/medcamp-hub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	store := docstore.NewPostgres(pool)

	// Reconciliation queue is optional: without Redis, counter drift is only logged.
	var (
		jobQueue *queue.Queue
		drift    registrations.DriftReporter
	)
	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Warn("redis disabled, counter drift will not be queued", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, cfg.Worker.PollInterval, logger)
		drift = jobQueue
	}

	var images camps.ImageStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	var intents payments.IntentCreator
	if cfg.Stripe.SecretKey != "" {
		intents = payments.NewStripeIntents(cfg.Stripe.SecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payment intents disabled")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	campRegistry := camps.NewRegistry(store)
	ledger := payments.NewLedger(store)
	directory := users.NewDirectory(store, cfg.Lifecycle.PreserveOrganizerRole)
	lifecycle := registrations.NewService(store, campRegistry, ledger, directory, drift, logger)

	authHandler := auth.NewHandler(directory, jwtService, logger)
	campHandler := camps.NewHandler(campRegistry, images, logger)
	registrationHandler := registrations.NewHandler(lifecycle, logger)
	paymentHandler := payments.NewHandler(ledger, intents, cfg.Stripe.Currency, logger)
	userHandler := users.NewHandler(directory, logger)
	feedbackHandler := feedbacks.NewHandler(feedbacks.NewStore(store, campRegistry), logger)
	analyticsHandler := analytics.NewHandler(analytics.NewAggregator(store, ledger), logger)

	organizer := middleware.RequireRole(string(models.RoleOrganizer))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public
	router.POST("/jwt", authHandler.Token)
	router.POST("/users", userHandler.Create)
	router.GET("/users/role/:email", userHandler.Role)
	router.GET("/camps", campHandler.List)
	router.GET("/camps/:id", campHandler.GetByID)
	router.GET("/feedbacks", feedbackHandler.List)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users", organizer, userHandler.List)
		api.GET("/users/:email", userHandler.GetByEmail)
		api.PATCH("/users/:email", userHandler.UpdateByEmail)
		api.PUT("/users/:id", userHandler.UpdateByID)

		// Camps (organizer writes)
		api.POST("/camps", organizer, campHandler.Create)
		api.PUT("/camps/:id", organizer, campHandler.Update)
		api.DELETE("/camps/:id", organizer, campHandler.Delete)
		api.POST("/camps/:id/reconcile", organizer, campHandler.Reconcile)
		api.POST("/camps/images", organizer, campHandler.UploadImage)
		api.POST("/camps/images/upload-url", organizer, campHandler.ImageUploadURL)

		// Registrations
		api.GET("/registrations", registrationHandler.List)
		api.GET("/registrations/:id", registrationHandler.GetByID)
		api.GET("/registrations/camps/:campId", organizer, registrationHandler.ListByCamp)
		api.POST("/registrations", registrationHandler.Register)
		api.PATCH("/registrations/:id", organizer, registrationHandler.UpdateStatus)
		api.PATCH("/registrations/:id/payment", registrationHandler.RecordPayment)
		api.DELETE("/registrations/:id", registrationHandler.Delete)

		// Payments
		api.GET("/payments", paymentHandler.List)
		api.POST("/payments", paymentHandler.Create)
		api.POST("/create-payment-intent", paymentHandler.CreateIntent)

		// Feedback
		api.POST("/feedbacks", feedbackHandler.Create)

		// Analytics
		api.GET("/analytics/dashboard", organizer, analyticsHandler.Dashboard)
		api.GET("/analytics/registered-camps-count", analyticsHandler.RegisteredCampsCount)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (camp counter reconciliation)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobQueue != nil && cfg.Worker.InProcess {
		go worker.NewReconcileProcessor(campRegistry, jobQueue, logger).Run(workerCtx)
		logger.Info("reconcile worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
