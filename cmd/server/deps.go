package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/bootstrap"
	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/grpc"
	"github.com/agenttrace/spanengine/internal/handler"
	"github.com/agenttrace/spanengine/internal/middleware"
	"github.com/agenttrace/spanengine/internal/service"
	"github.com/agenttrace/spanengine/internal/worker"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Health  *handler.HealthHandler
	OTel    *handler.OTelHandler
	Runs    *handler.RunHandler
	Content *handler.ContentHandler
}

// Dependencies holds everything the server needs
type Dependencies struct {
	Databases *bootstrap.Databases
	Pipeline  *bootstrap.Pipeline
	Handlers  *Handlers
	RateLimit *middleware.ProjectRateLimit
	OTLPGRPC  *grpc.OTLPTraceService

	asynqClient *asynq.Client
	cancel      context.CancelFunc
}

// initDependencies connects the backends and builds the handlers. With
// inline ingestion the handlers store spans directly, otherwise they
// enqueue tasks for the worker.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	ctx, cancel := context.WithCancel(context.Background())
	deps := &Dependencies{cancel: cancel}

	dbs, err := bootstrap.InitDatabases(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	deps.Databases = dbs

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, dbs, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to build ingestion pipeline: %w", err)
	}
	deps.Pipeline = pipeline
	go pipeline.Costs.RunRefresh(ctx, cfg.Ingestion.PriceRefreshInterval)

	var sink service.SpanSink = pipeline.Ingestion
	if !cfg.Ingestion.Inline {
		deps.asynqClient = asynq.NewClient(worker.RedisOpt(cfg))
		sink = worker.NewProducer(deps.asynqClient, cfg.Worker.QueueDefault, cfg.Worker.QueueCritical, cfg.Worker.MaxRetry)
	}
	receiver := service.NewOTLPReceiver(sink, logger)

	var content handler.ContentFetcher
	if pipeline.Content != nil {
		content = pipeline.Content
	}

	pingers := map[string]handler.Pinger{
		"clickhouse": dbs.ClickHouse,
		"redis":      dbs.Redis,
	}
	if dbs.Postgres != nil {
		pingers["postgres"] = dbs.Postgres
	}

	deps.Handlers = &Handlers{
		Health:  handler.NewHealthHandler(pingers, appVersion),
		OTel:    handler.NewOTelHandler(logger, receiver),
		Runs:    handler.NewRunHandler(logger, sink),
		Content: handler.NewContentHandler(content),
	}
	deps.RateLimit = middleware.NewProjectRateLimit(dbs.Redis.Client, cfg.Server.RateLimitPerMinute, time.Minute)
	deps.OTLPGRPC = grpc.NewOTLPTraceService(receiver, logger)

	return deps, nil
}

// Close releases all resources
func (d *Dependencies) Close() {
	d.cancel()
	if d.asynqClient != nil {
		_ = d.asynqClient.Close()
	}
	if d.Databases != nil {
		d.Databases.Close()
	}
}
