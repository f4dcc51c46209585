package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"replayhub/internal/pkg/clock"
	"replayhub/internal/pkg/logger"
	"replayhub/internal/platform/audit"
	"replayhub/internal/platform/config"
	"replayhub/internal/platform/database"
	"replayhub/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
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

	if cfg.Audit.Retention <= 0 {
		log.Info().Msg("audit retention disabled, nothing to do")
		return nil
	}

	retention := &workers.AuditRetention{
		Pruner:    audit.NewLogger(db, clock.Real{}),
		Clock:     clock.Real{},
		Retention: cfg.Audit.Retention,
	}

	log.Info().Dur("retention", cfg.Audit.Retention).Dur("interval", cfg.Audit.PruneInterval).Msg("starting audit retention worker")
	workers.Every(ctx, "audit_retention", cfg.Audit.PruneInterval, retention.RunOnce)

	log.Info().Msg("worker stopped")
	return nil
}
