package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/bootstrap"
	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/middleware"
	"github.com/agenttrace/spanengine/internal/pkg/logger"
	"github.com/agenttrace/spanengine/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer func() { _ = logger.Sync() }()

	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Server.Env
	}
	if err := middleware.InitSentry(cfg.Sentry); err != nil {
		log.Error("failed to initialize Sentry", zap.Error(err))
	} else if cfg.Sentry.Enabled() {
		defer middleware.FlushSentry(5 * time.Second)
	}

	log.Info("starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize dependencies
	dbs, err := bootstrap.InitDatabases(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer dbs.Close()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, dbs, log)
	if err != nil {
		log.Fatal("failed to build ingestion pipeline", zap.Error(err))
	}
	go pipeline.Costs.RunRefresh(ctx, cfg.Ingestion.PriceRefreshInterval)

	// Create worker server
	workerServer := worker.NewServer(log, cfg, pipeline.Ingestion)

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}
