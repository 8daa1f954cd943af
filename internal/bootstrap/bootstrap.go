// Package bootstrap connects the storage backends and assembles the span
// ingestion pipeline shared by the API server and the worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/pkg/circuitbreaker"
	"github.com/agenttrace/spanengine/internal/pkg/database"
	"github.com/agenttrace/spanengine/internal/repository/blob"
	chrepo "github.com/agenttrace/spanengine/internal/repository/clickhouse"
	pgrepo "github.com/agenttrace/spanengine/internal/repository/postgres"
	"github.com/agenttrace/spanengine/internal/service"
)

const contentCachePrefix = "spanengine:content:"

// Databases holds all backend connections. Postgres and Minio are nil when
// not configured.
type Databases struct {
	Postgres   *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Minio      *minio.Client
}

// InitDatabases connects to every configured backend
func InitDatabases(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Databases, error) {
	dbs := &Databases{}

	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	dbs.ClickHouse = chDB

	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	dbs.Redis = redisDB

	if cfg.Postgres.Host != "" {
		pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			dbs.Close()
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		dbs.Postgres = pgDB
	}

	minioClient, err := blob.NewMinioClient(cfg.MinIO)
	if err != nil {
		logger.Warn("failed to initialize MinIO, inline images stay inline", zap.Error(err))
	} else if minioClient != nil {
		if err := blob.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket); err != nil {
			logger.Warn("content bucket unavailable, inline images stay inline", zap.Error(err))
		} else {
			dbs.Minio = minioClient
		}
	}

	return dbs, nil
}

// Close closes all connections
func (d *Databases) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// Pipeline is the assembled ingestion path
type Pipeline struct {
	Ingestion *service.SpanIngestionService
	Costs     *service.CostService
	// Content is nil when blob storage is not configured
	Content *blob.Store
}

// NewPipeline ensures the storage schemas and wires the normalizer, content
// resolver, cost service and span repository together.
func NewPipeline(ctx context.Context, cfg *config.Config, dbs *Databases, logger *zap.Logger) (*Pipeline, error) {
	spanRepo := chrepo.NewSpanRepository(dbs.ClickHouse, logger)
	if err := spanRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure span schema: %w", err)
	}

	var prices service.PriceSource
	if dbs.Postgres != nil {
		pricingRepo := pgrepo.NewPricingRepository(dbs.Postgres)
		if err := pricingRepo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure pricing schema: %w", err)
		}
		prices = pricingRepo
	}

	costs := service.NewCostService(prices, logger)
	if err := costs.Refresh(ctx); err != nil {
		logger.Warn("failed to load stored model prices, using built-in table", zap.Error(err))
	}

	p := &Pipeline{Costs: costs}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name: "blob-store",
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	var store service.BlobStore
	if dbs.Minio != nil {
		p.Content = blob.NewStore(dbs.Minio, cfg.MinIO.Bucket, logger)
		store = p.Content
	}
	cache := database.NewCache(dbs.Redis.Client, contentCachePrefix, cfg.Ingestion.ContentCacheTTL)

	resolver := service.NewBlobContentResolver(store, cache, breaker, logger)
	normalizer := service.NewSpanNormalizer(resolver, cfg.Ingestion.ContentResolveConcurrency, logger)
	p.Ingestion = service.NewSpanIngestionService(normalizer, costs, spanRepo, logger)

	return p, nil
}
