package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/pdv/internal/adapter/backend"
	httpAdapter "github.com/iho/pdv/internal/adapter/http"
	"github.com/iho/pdv/internal/adapter/http/handler"
	"github.com/iho/pdv/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/pdv/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/pdv/internal/adapter/repository/redis"
	"github.com/iho/pdv/internal/infrastructure/config"
	"github.com/iho/pdv/internal/infrastructure/dispatcher"
	"github.com/iho/pdv/internal/infrastructure/logger"
	"github.com/iho/pdv/internal/infrastructure/metrics"
	"github.com/iho/pdv/internal/infrastructure/postgres"
	"github.com/iho/pdv/internal/infrastructure/redis"
	"github.com/iho/pdv/internal/usecase"
)

const (
	serviceName            = "pdv"
	rateLimiterCleanupTick = time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
		return err
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info().Msg("connected to redis")

	appMetrics := metrics.New()

	// Initialize adapters
	backendClient := backend.NewClient(backend.Config{
		BaseURL:    cfg.BackendBaseURL,
		Token:      cfg.BackendToken,
		Timeout:    cfg.BackendTimeout,
		MaxRetries: cfg.BackendMaxRetries,
	}, appMetrics, logger)

	txManager := postgresRepo.NewTxManager(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	retrier := postgresRepo.NewRetrier(logger)
	idGen := postgresRepo.NewULIDGenerator()
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	sessionCache := redisRepo.NewSessionCache(redisClient)

	// Initialize use cases
	pricingUC := usecase.NewPricingUseCase(appMetrics, logger)
	cashSessionUC := usecase.NewCashSessionUseCase(
		backendClient,
		sessionCache,
		txManager,
		outboxRepo,
		retrier,
		idGen,
		appMetrics,
		logger,
		cfg.SessionCacheTTL,
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).OnLimited(appMetrics.RateLimited)
	go rateLimiter.RunCleanup(ctx, rateLimiterCleanupTick)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		PricingHandler:     handler.NewPricingHandler(pricingUC),
		CashSessionHandler: handler.NewCashSessionHandler(cashSessionUC),
		HealthHandler: handler.NewHealthHandler(
			handler.HealthCheck{Name: "postgres", Check: pool.Ping},
			handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redis.Ping(ctx, redisClient)
			}},
		),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Logger:           logger,
	})

	// Start closing dispatcher
	closingDispatcher := dispatcher.New(dispatcher.Config{
		OutboxRepo: outboxRepo,
		Submitter:  backendClient,
		Metrics:    appMetrics,
		Logger:     logger,
		BatchSize:  cfg.DispatchBatchSize,
		Interval:   cfg.DispatchInterval,
		Retention:  cfg.OutboxRetention,

		MaxAttempts:   cfg.DispatchMaxAttempts,
		RetryDelay:    cfg.DispatchRetryDelay,
		MaxRetryDelay: cfg.DispatchMaxRetryDelay,
	})

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := closingDispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("closing dispatcher stopped")
		}
	}()

	server := newHTTPServer(cfg, router)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("closing dispatcher did not stop before shutdown timeout")
	}

	return nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}
