package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"novelistan/internal/config"
	"novelistan/internal/database"
	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/jwt"
	"novelistan/internal/pkg/logger"
	"novelistan/internal/server"
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, lg)
	if err != nil {
		lg.Fatal("database connect failed", zap.Error(err))
	}
	if err := server.Migrate(db); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	resolver := upload.NewResolver(cfg.UploadsDir, upload.DefaultPolicies(cfg.ManuscriptMaxBytes, cfg.ImageMaxBytes))
	if err := resolver.EnsureDirs(); err != nil {
		lg.Fatal("uploads directory", zap.String("dir", cfg.UploadsDir), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := server.NewStorage(ctx, cfg)
	if err != nil {
		lg.Fatal("storage init failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs, err := upload.NewPrometheusObserver("novelistan", registry)
	if err != nil {
		lg.Fatal("metrics init failed", zap.Error(err))
	}

	janitor := upload.NewJanitor(resolver, cfg.PartialMaxAge, lg.Named("janitor"))
	scheduler, err := janitor.Schedule(cfg.JanitorSchedule)
	if err != nil {
		lg.Fatal("janitor schedule", zap.String("spec", cfg.JanitorSchedule), zap.Error(err))
	}

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		DB:       db,
		Logger:   lg,
		JWT:      jwt.New(cfg.JWTSecret, 24*time.Hour),
		Resolver: resolver,
		Storage:  storage,
		Observer: obs,
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.StorageBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()
}
