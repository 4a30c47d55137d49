// Command janitor removes abandoned upload spool files once and exits.
package main

import (
	"log"

	"go.uber.org/zap"

	"novelistan/internal/config"
	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	resolver := upload.NewResolver(cfg.UploadsDir, upload.DefaultPolicies(cfg.ManuscriptMaxBytes, cfg.ImageMaxBytes))
	janitor := upload.NewJanitor(resolver, cfg.PartialMaxAge, lg)

	removed, err := janitor.SweepPartials(cfg.PartialMaxAge)
	if err != nil {
		lg.Error("partial upload cleanup incomplete", zap.Int("removed", removed), zap.Error(err))
		return
	}
	lg.Info("partial upload cleanup completed", zap.Int("removed", removed), zap.Duration("max_age", cfg.PartialMaxAge))
}
