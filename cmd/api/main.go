package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/modaline/store-api/internal/cache"
	"github.com/modaline/store-api/internal/config"
	"github.com/modaline/store-api/internal/database"
	"github.com/modaline/store-api/internal/handler"
	"github.com/modaline/store-api/internal/middleware"
	"github.com/modaline/store-api/internal/repository"
	"github.com/modaline/store-api/internal/service"
	"github.com/modaline/store-api/internal/utils"
	"github.com/modaline/store-api/internal/worker"
	"github.com/modaline/store-api/pkg/iyzico"
)

// main is the application entrypoint for the storefront payment API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Bool("gateway_test_mode", cfg.Iyzico.TestMode).Msg("starting store api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	sessionCache := cache.NewSessionCache(redisClient)

	// 4. Initialize JWT signing
	utils.InitJWT(cfg.JWTSecret)

	// 5. Initialize the gateway client
	gateway := iyzico.NewClient(iyzico.Config{
		APIKey:    cfg.Iyzico.APIKey,
		SecretKey: cfg.Iyzico.SecretKey,
		BaseURL:   cfg.Iyzico.BaseURL,
		Timeout:   cfg.Iyzico.Timeout,
		Debug:     cfg.Env != "production",
	})

	// 6. Initialize repositories
	paymentRepo := repository.NewPaymentRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)

	// 7. Initialize services
	audit := service.NewAuditEmitter(paymentRepo)
	builder := service.NewRequestBuilder(audit, "tr")
	paymentSvc := service.NewPaymentService(gateway, builder, audit, paymentRepo, sessionCache, cfg.Iyzico)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:       handler.NewHealthHandler(db),
		Payment:      handler.NewPaymentHandler(paymentSvc),
		Auth:         handler.NewAuthHandler(adminAuthSvc),
		AdminPayment: handler.NewAdminPaymentHandler(paymentRepo),
	}

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, middleware.NewJWTMiddleware())

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start the status sweep worker
	go worker.NewStatusSweepWorker(
		paymentRepo, paymentSvc,
		cfg.Worker.StatusSweepInterval,
		cfg.Worker.StatusSweepStaleAfter,
		cfg.Worker.StatusSweepMaxAge,
	).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health       *handler.HealthHandler
	Payment      *handler.PaymentHandler
	Auth         *handler.AuthHandler
	AdminPayment *handler.AdminPaymentHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	payments := router.Group("/v1/payments")
	{
		payments.POST("/3ds/initialize", handlers.Payment.Initiate3DS)
		payments.POST("/3ds/callback", handlers.Payment.Callback)
		payments.POST("/3ds/complete", handlers.Payment.Complete3DS)
		payments.GET("/test-connection", handlers.Payment.TestConnection)
		payments.GET("/:paymentId/status", handlers.Payment.GetStatus)
	}

	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		admin.GET("/payments", handlers.AdminPayment.ListPayments)
		admin.GET("/payments/:conversationId/records", handlers.AdminPayment.GetPaymentRecords)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
