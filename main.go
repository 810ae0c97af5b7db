package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeglow/config"
	"homeglow/cron"
	"homeglow/database"
	addressRepo "homeglow/database/repository/address"
	bookingRepo "homeglow/database/repository/booking"
	catalogRepo "homeglow/database/repository/catalog"
	sessionRepo "homeglow/database/repository/session"
	"homeglow/handlers"
	"homeglow/middleware"
	"homeglow/routes"
	"homeglow/services/payment"
	"homeglow/services/session"
	"homeglow/services/tasks"
	"homeglow/services/usage"
	"homeglow/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync() //nolint:errcheck

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if len(config.AppConfig.JWTSecret) == 0 {
		logger.Warn("JWT_SECRET is empty; every authenticated request will be rejected")
	}

	database.InitDB()
	if err := database.InitSupabase(); err != nil {
		logger.Sugar().Fatalf("main: failed to initialize catalog client: %v", err)
	}
	cache := utils.GetCacheClient()

	queueOpt := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	queueClient := asynq.NewClient(queueOpt)

	// repositories.
	db := database.Database()
	sessions := sessionRepo.NewMongoSessionRepo(db, logger)
	addresses := addressRepo.NewMongoAddressRepo(db, logger)
	bookings := bookingRepo.NewMongoBookingRepo(db, logger)
	catalog := catalogRepo.NewSupabaseCatalogRepo(database.SupabaseClient)

	// services.
	sessionService := &session.DefaultSessionService{
		Sessions:  sessions,
		Addresses: addresses,
		Bookings:  bookings,
		Catalog:   catalog,
		Payments:  payment.NewStripeGateway(config.AppConfig.StripeKey, logger),
		Usage:     usage.NewRedisRecorder(cache),
		Handoff:   tasks.NewAsynqPublisher(queueClient),
		Tx:        database.NewMongoTransactor(database.MongoClient),
		Logger:    logger.Named("session"),
		Options: session.Options{
			TTL:              config.AppConfig.SessionTTL(),
			SlidingExpiry:    config.AppConfig.SessionSlidingExpiry,
			Currency:         config.AppConfig.Currency,
			CleanupBatchSize: config.AppConfig.CleanupBatchSize,
		},
	}

	worker, err := cron.NewWorker(queueOpt, sessionService, config.AppConfig.CleanupInterval, logger.Named("worker"))
	if err != nil {
		logger.Sugar().Fatalf("main: failed to configure task worker: %v", err)
	}
	worker.Start()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	utils.StartHealthMonitor(monitorCtx, time.Minute, []*redis.Client{cache}, database.MongoClient)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	sessionHandler := handlers.NewSessionHandler(sessionService, logger.Named("http"))
	handlerBundle := handlers.NewHandlerBundle(sessionHandler, handlers.HealthHandler, []byte(config.AppConfig.JWTSecret))
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting server", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	stopMonitor()
	worker.Shutdown()
	if err := queueClient.Close(); err != nil {
		logger.Warn("main: failed to close task client", zap.Error(err))
	}
	utils.CloseCache()
	if err := database.Disconnect(); err != nil {
		logger.Warn("main: failed to disconnect MongoDB", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
