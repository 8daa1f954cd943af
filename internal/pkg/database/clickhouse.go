package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/pkg/logger"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
)

const clickhouseLabel = "clickhouse"

// ClickHouseDB wraps a ClickHouse connection
type ClickHouseDB struct {
	Conn driver.Conn
}

// NewClickHouse creates a new ClickHouse connection
func NewClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:          10 * time.Second,
		MaxOpenConns:         25,
		MaxIdleConns:         5,
		ConnMaxLifetime:      time.Hour,
		ConnOpenStrategy:     clickhouse.ConnOpenInOrder,
		BlockBufferSize:      10,
		MaxCompressionBuffer: 10 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{Conn: conn}, nil
}

// Close closes the connection
func (db *ClickHouseDB) Close() error {
	if db.Conn != nil {
		return db.Conn.Close()
	}
	return nil
}

// Ping checks the connection
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}

// PrepareBatch prepares a batch insert
func (db *ClickHouseDB) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return db.Conn.PrepareBatch(ctx, query)
}

// Exec executes a query, recording it under operation
func (db *ClickHouseDB) Exec(ctx context.Context, operation, query string, args ...any) (err error) {
	defer func(start time.Time) { metrics.TrackDBQuery(clickhouseLabel, operation, start, err) }(time.Now())
	return db.Conn.Exec(ctx, query, args...)
}

// Select executes a select query and scans results into dest, recording it under operation
func (db *ClickHouseDB) Select(ctx context.Context, operation string, dest any, query string, args ...any) (err error) {
	defer func(start time.Time) { metrics.TrackDBQuery(clickhouseLabel, operation, start, err) }(time.Now())
	return db.Conn.Select(ctx, dest, query, args...)
}

// SendBatch sends a prepared batch, recording it under operation
func (db *ClickHouseDB) SendBatch(operation string, batch driver.Batch) (err error) {
	defer func(start time.Time) { metrics.TrackDBQuery(clickhouseLabel, operation, start, err) }(time.Now())
	return batch.Send()
}
