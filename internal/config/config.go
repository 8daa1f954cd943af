package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	GRPC       GRPCConfig
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	MinIO      MinIOConfig
	Worker     WorkerConfig
	Log        LogConfig
	Ingestion  IngestionConfig
	Sentry     SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Env         string `mapstructure:"env"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`

	// RateLimitPerMinute caps requests per project; 0 disables the limit
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
}

// GRPCConfig holds the OTLP/gRPC receiver configuration
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// PostgresConfig holds PostgreSQL configuration. Postgres only serves the
// model price table; an empty host disables it.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DSN returns the PostgreSQL connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MinIOConfig holds blob storage configuration for resolved prompt content
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	QueueCritical string `mapstructure:"queue_critical"`
	QueueDefault  string `mapstructure:"queue_default"`
	QueueLow      string `mapstructure:"queue_low"`
	MaxRetry      int    `mapstructure:"max_retry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestionConfig controls how received spans are processed
type IngestionConfig struct {
	// Inline processes spans in the request instead of enqueueing tasks
	Inline bool `mapstructure:"inline"`
	// ContentResolveConcurrency bounds concurrent fragment resolution per message
	ContentResolveConcurrency int `mapstructure:"content_resolve_concurrency"`
	// ContentCacheTTL is how long resolved blob references stay cached in Redis
	ContentCacheTTL time.Duration `mapstructure:"content_cache_ttl"`
	// PriceRefreshInterval controls how often the Postgres price table is reloaded
	PriceRefreshInterval time.Duration `mapstructure:"price_refresh_interval"`
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	Release     string  `mapstructure:"release"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether errors should be sent to Sentry
func (c SentryConfig) Enabled() bool {
	return c.DSN != ""
}

// IsDevelopment returns true if running in development mode
func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
