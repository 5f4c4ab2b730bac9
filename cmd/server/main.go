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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/config"
	"feedpos/backend/internal/httpapi"
	"feedpos/backend/internal/obs"
	"feedpos/backend/internal/service"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/store/memory"
	pgstore "feedpos/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("repository unavailable")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	carts, closeCarts := openCartStore(ctx, cfg, logger)
	if closeCarts != nil {
		closers = append(closers, closeCarts)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, registry)
	salesMetrics := obs.NewSalesMetrics(cfg.MetricsNamespace, registry)

	svc := service.New(repo, carts, logger, service.Options{
		CartTTL:      cfg.CartTTL,
		Currency:     cfg.Currency,
		BusinessName: cfg.BusinessName,
		Recorder:     salesMetrics,
		Location:     cfg.BusinessLocation,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
		Gatherer:       registry,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Address()).Msg("feed store POS listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

// openRepository returns postgres when DATABASE_URL is set and the seeded
// in-memory store otherwise. A configured database that cannot be reached
// is an error; there is no silent fallback.
func openRepository(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		repo := memory.NewSeeded()
		if repo.DefaultCredentials() {
			logger.Warn().Msg("in-memory store seeded with default admin/cashier passwords; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD")
		}
		logger.Info().Str("repository", "memory").Msg("repository ready")
		return repo, nil, nil
	}

	if cfg.AutoMigrate {
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Info().Str("repository", "postgres").Msg("repository ready")
	return pg, pg.Close, nil
}

// openCartStore prefers redis so cart sessions survive restarts, falling
// back to process memory when redis is not configured or unreachable.
func openCartStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.CartStore, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info().Str("cart_store", "memory").Msg("cart store ready")
		return cache.NewMemoryCartStore(), nil
	}
	redisCarts := cache.NewRedisCartStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCarts.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, keeping carts in memory")
		_ = redisCarts.Close()
		return cache.NewMemoryCartStore(), nil
	}
	logger.Info().Str("cart_store", "redis").Msg("cart store ready")
	return redisCarts, redisCarts.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AccessTokenTTL > 24*time.Hour {
		return fmt.Errorf("ACCESS_TOKEN_TTL must not exceed 24h")
	}
	return nil
}
