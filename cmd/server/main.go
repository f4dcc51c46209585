package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"replayhub/internal/api"
	"replayhub/internal/api/handlers"
	"replayhub/internal/api/middleware"
	"replayhub/internal/engine/projects"
	"replayhub/internal/engine/records"
	"replayhub/internal/engine/webhooks"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/logger"
	"replayhub/internal/platform/audit"
	"replayhub/internal/platform/auth"
	"replayhub/internal/platform/config"
	"replayhub/internal/platform/database"
	"replayhub/internal/platform/database/migrations"
	"replayhub/internal/platform/repositories"
	"replayhub/internal/platform/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}
	log.Info().Msg("database ready")

	store, err := storage.NewObjectStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}

	healthChecks := map[string]handlers.Pinger{"database": db}

	var limiter middleware.Limiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiter = middleware.NewRedisLimiter(client)
		healthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		log.Info().Msg("redis connected")
	} else {
		memory := middleware.NewMemoryLimiter()
		defer memory.Close()
		limiter = memory
	}

	clk := clock.Real{}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(db, clk)
	defer auditLogger.Wait()

	projectSvc := projects.NewService(db, clk, projects.UUIDKeys{})
	recordSvc := records.NewService(db, store, cfg.Assist, clk)
	registry := webhooks.NewRegistry(db, clk)
	dispatcher := webhooks.NewDispatcher(webhookRepo, cfg.Webhooks.WorkerCount, cfg.Webhooks.Timeout)

	deps := &api.Dependencies{
		AuthHandler:      handlers.NewAuthHandler(userRepo, tokenSvc),
		ProjectHandler:   handlers.NewProjectHandler(projectSvc, auditLogger),
		RecordHandler:    handlers.NewRecordHandler(recordSvc, auditLogger),
		WebhookHandler:   handlers.NewWebhookHandler(registry, dispatcher, auditLogger),
		AuditHandler:     handlers.NewAuditHandler(auditLogger),
		HealthHandler:    handlers.NewHealthHandler(healthChecks),
		MetricsHandler:   handlers.NewMetricsHandler(dispatcher),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(userRepo),
		RateLimiter:      middleware.NewRateLimiter(limiter, cfg.RateLimit),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
