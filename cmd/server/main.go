package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/vanshika/finbridge/internal/cache"
	"github.com/vanshika/finbridge/internal/config"
	"github.com/vanshika/finbridge/internal/domain"
	"github.com/vanshika/finbridge/internal/logging"
	"github.com/vanshika/finbridge/internal/metrics"
	"github.com/vanshika/finbridge/internal/server"
	"github.com/vanshika/finbridge/internal/service"
	"github.com/vanshika/finbridge/internal/store"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	st, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	if cfg.Store.SeedFile != "" {
		count, err := seedSystemConfigs(ctx, st, cfg.Store.SeedFile)
		if err != nil {
			logger.Error("failed to seed system configs", "error", err, "file", cfg.Store.SeedFile)
			os.Exit(1)
		}
		logger.Info("seeded system configs", "count", count, "file", cfg.Store.SeedFile)
	}

	responseCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.HTTP.MetricsEnabled {
		m = metrics.New()
		metricsHandler = m.Handler()
	}

	dispatcher := service.NewDispatcher(logger, m, cfg.Dispatch.BackoffUnit)
	mediator := service.NewMediator(st, responseCache, dispatcher, logger, m, cfg.Cache.DefaultTTL)
	apiHandlers := server.NewAPIHandlers(logger, mediator, cfg.Webhook.Secret)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: st},
		API:              apiHandlers,
		Metrics:          metricsHandler,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "graph":
		return store.NewGraphStore(ctx, store.GraphOptions{
			URI:            cfg.Store.Graph.URI,
			Database:       cfg.Store.Graph.Database,
			Username:       cfg.Store.Graph.Username,
			Password:       cfg.Store.Graph.Password,
			MaxConnections: cfg.Store.Graph.MaxConnections,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildCache(cfg config.Config, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		return cache.NewRedisCache(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

type seedSystemConfig struct {
	SystemName     string `json:"system_name"`
	SystemType     string `json:"system_type"`
	BaseURL        string `json:"base_url"`
	AuthType       string `json:"auth_type"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryCount     int    `json:"retry_count"`
	IsActive       bool   `json:"is_active"`
}

func seedSystemConfigs(ctx context.Context, st store.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []seedSystemConfig
	if err := json.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for _, seed := range seeds {
		cfg := domain.SystemConfig{
			SystemName: seed.SystemName,
			SystemType: domain.SystemType(seed.SystemType),
			BaseURL:    seed.BaseURL,
			AuthType:   domain.AuthType(seed.AuthType),
			APIKey:     seed.APIKey,
			APISecret:  seed.APISecret,
			Timeout:    time.Duration(seed.TimeoutSeconds) * time.Second,
			RetryCount: seed.RetryCount,
			IsActive:   seed.IsActive,
		}
		if err := st.UpsertSystemConfig(ctx, cfg); err != nil {
			return 0, fmt.Errorf("seed system %s: %w", seed.SystemName, err)
		}
	}
	return len(seeds), nil
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
