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

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"furnidesk/backend/internal/cache"
	"furnidesk/backend/internal/config"
	"furnidesk/backend/internal/httpapi"
	"furnidesk/backend/internal/observability"
	"furnidesk/backend/internal/ordlock"
	"furnidesk/backend/internal/service"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/store/memory"
	pgstore "furnidesk/backend/internal/store/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migration failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var (
		locker     ordlock.Locker   = ordlock.NewLocalLocker()
		orderCache cache.OrderCache = cache.NewMemoryOrderCache(0)
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			// A shared lock cannot silently degrade to a process-local one.
			logger.Fatal("redis unavailable and REDIS_ADDR is set", zap.Error(err))
		}
		locker = ordlock.NewRedisLocker(client, cfg.OrderLockTTL)
		orderCache = cache.NewRedisOrderCache(client)
		closers = append(closers, client.Close)
		logger.Info("order lock and cache: redis")
	} else {
		logger.Info("order lock and cache: in-process")
	}

	provider, reader := observability.NewMeterProvider()
	otel.SetMeterProvider(provider)
	metrics, err := observability.NewMetrics(provider.Meter(observability.ScopeName))
	if err != nil {
		logger.Fatal("metrics setup failed", zap.Error(err))
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Endpoint:   cfg.OTLPEndpoint,
		Insecure:   cfg.OTLPInsecure,
		SampleRate: cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	if cfg.OTLPEndpoint != "" {
		logger.Info("tracing: otlp", zap.String("endpoint", cfg.OTLPEndpoint), zap.Float64("sample_rate", cfg.TraceSampleRate))
	}

	svc := service.New(repo, locker, orderCache, metrics, logger, service.Options{
		AllowEmptyItems:   cfg.OrderAllowEmptyItems,
		StrictTransitions: cfg.OrderStrictTransitions,
		CacheTTL:          cfg.OrderCacheTTL,
		LockWait:          cfg.OrderLockWait,
		TracerProvider:    tracerProvider,
	})
	api := httpapi.New(svc, httpapi.NewAuthManager(cfg.AuthSecret, 0), cfg.AllowedOrigin,
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
		httpapi.WithMetricsReader(reader),
		httpapi.WithLogger(logger),
	)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("order backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("meter provider shutdown error", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer provider shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// validateSecurityConfig allows running without AUTH_SECRET (open API) but
// rejects a secret too short to sign tokens safely.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.AuthSecret != "" && len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters when set")
	}
	if cfg.OrderLockTTL <= cfg.RequestTimeout && cfg.RedisAddr != "" {
		return fmt.Errorf("ORDER_LOCK_TTL_SECONDS (%s) must exceed REQUEST_TIMEOUT_SECONDS (%s) when redis locking is enabled",
			cfg.OrderLockTTL, cfg.RequestTimeout)
	}
	return nil
}
