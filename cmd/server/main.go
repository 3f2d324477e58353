package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/application"
	"github.com/harborline-tours/service-payments/internal/auth"
	"github.com/harborline-tours/service-payments/internal/config"
	"github.com/harborline-tours/service-payments/internal/database"
	"github.com/harborline-tours/service-payments/internal/events"
	"github.com/harborline-tours/service-payments/internal/handler"
	"github.com/harborline-tours/service-payments/internal/health"
	"github.com/harborline-tours/service-payments/internal/kafka"
	"github.com/harborline-tours/service-payments/internal/logger"
	"github.com/harborline-tours/service-payments/internal/metrics"
	"github.com/harborline-tours/service-payments/internal/middleware"
	"github.com/harborline-tours/service-payments/internal/pricing"
	"github.com/harborline-tours/service-payments/internal/refund"
	"github.com/harborline-tours/service-payments/internal/repository"
	"github.com/harborline-tours/service-payments/internal/retry"
	"github.com/harborline-tours/service-payments/internal/saga"
)

const serviceName = "service-payments"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-payments",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.PaymentModel{},
			&repository.ProductModel{},
			&repository.ScheduleModel{},
			&repository.PickupModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize Stripe adapter (mock for development)
	stripeAdapter := adapter.NewMockStripeAdapter(zapLogger)

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// Initialize the refund pipeline and pricing reconciler
	scanner := refund.NewScanner(paymentRepo)
	allocator := refund.NewAllocator(scanner)
	executor := refund.NewExecutor(paymentRepo, stripeAdapter, zapLogger)
	reconciler := pricing.NewReconciler(catalogRepo)

	// Initialize saga service
	sagaService := saga.NewPaymentIntentSagaService(paymentRepo, stripeAdapter, zapLogger)

	// Initialize application services
	paymentService := application.NewPaymentService(
		bookingRepo, paymentRepo, scanner, executor, sagaService,
		kafkaProducer, retry.DefaultPolicy(), zapLogger,
	)
	bookingService := application.NewBookingService(
		bookingRepo, catalogRepo, scanner, allocator, executor,
		reconciler, sagaService, kafkaProducer, zapLogger,
	)

	// Initialize Kafka consumer for gateway refund confirmations
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + serviceName
	gatewayConsumer := events.NewGatewayEventConsumer(
		kafka.NewConsumer(cfg.KafkaConfig.Brokers, consumerGroupID, events.TopicGatewayEvents, zapLogger),
		paymentService,
		zapLogger,
	)
	defer gatewayConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting gateway event consumer")
		if err := gatewayConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("gateway event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	paymentHandler := handler.NewPaymentHandler(paymentService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminHandler := handler.NewAdminHandler(paymentService, bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)

	metrics.Register()
	router.GET("/metrics", metrics.Handler())

	// Register API routes
	apiV1 := router.Group("/api/v1")
	paymentHandler.RegisterRoutes(apiV1, jwtManager)
	bookingHandler.RegisterRoutes(apiV1, jwtManager)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-payments...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-payments stopped")
}
