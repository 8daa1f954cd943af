package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from a .env file (if present), environment
// variables and an optional config.yaml, in increasing precedence of the
// environment over files.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/spanengine")
	_ = v.ReadInConfig()

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	var cfg Config

	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.Env = v.GetString("server_env")
	cfg.Server.BodyLimitMB = v.GetInt("server_body_limit_mb")
	cfg.Server.RateLimitPerMinute = v.GetInt("server_rate_limit_per_minute")

	cfg.GRPC.Enabled = v.GetBool("grpc_enabled")
	cfg.GRPC.Port = v.GetInt("grpc_port")

	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = v.GetInt32("postgres_max_conns")
	cfg.Postgres.MinConns = v.GetInt32("postgres_min_conns")

	cfg.ClickHouse.Host = v.GetString("clickhouse_host")
	cfg.ClickHouse.Port = v.GetInt("clickhouse_port")
	cfg.ClickHouse.User = v.GetString("clickhouse_user")
	cfg.ClickHouse.Password = v.GetString("clickhouse_password")
	cfg.ClickHouse.Database = v.GetString("clickhouse_db")

	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	cfg.MinIO.Endpoint = v.GetString("minio_endpoint")
	cfg.MinIO.AccessKey = v.GetString("minio_access_key")
	cfg.MinIO.SecretKey = v.GetString("minio_secret_key")
	cfg.MinIO.UseSSL = v.GetBool("minio_use_ssl")
	cfg.MinIO.Bucket = v.GetString("minio_bucket")

	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")
	cfg.Worker.QueueCritical = v.GetString("worker_queue_critical")
	cfg.Worker.QueueDefault = v.GetString("worker_queue_default")
	cfg.Worker.QueueLow = v.GetString("worker_queue_low")
	cfg.Worker.MaxRetry = v.GetInt("worker_max_retry")

	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	cfg.Ingestion.Inline = v.GetBool("ingestion_inline")
	cfg.Ingestion.ContentResolveConcurrency = v.GetInt("ingestion_content_resolve_concurrency")
	cfg.Ingestion.ContentCacheTTL = v.GetDuration("ingestion_content_cache_ttl")
	cfg.Ingestion.PriceRefreshInterval = v.GetDuration("ingestion_price_refresh_interval")

	cfg.Sentry.DSN = v.GetString("sentry_dsn")
	cfg.Sentry.Environment = v.GetString("sentry_environment")
	cfg.Sentry.Release = v.GetString("sentry_release")
	cfg.Sentry.SampleRate = v.GetFloat64("sentry_sample_rate")

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_env", "development")
	v.SetDefault("server_body_limit_mb", 16)
	v.SetDefault("server_rate_limit_per_minute", 0)

	v.SetDefault("grpc_enabled", true)
	v.SetDefault("grpc_port", 4317)

	v.SetDefault("postgres_host", "")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "spanengine")
	v.SetDefault("postgres_password", "spanengine")
	v.SetDefault("postgres_db", "spanengine")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 10)
	v.SetDefault("postgres_min_conns", 1)

	v.SetDefault("clickhouse_host", "localhost")
	v.SetDefault("clickhouse_port", 9000)
	v.SetDefault("clickhouse_user", "spanengine")
	v.SetDefault("clickhouse_password", "spanengine")
	v.SetDefault("clickhouse_db", "spanengine")

	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_access_key", "spanengine")
	v.SetDefault("minio_secret_key", "spanengine123")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("minio_bucket", "span-content")

	v.SetDefault("worker_concurrency", 10)
	v.SetDefault("worker_queue_critical", "critical")
	v.SetDefault("worker_queue_default", "default")
	v.SetDefault("worker_queue_low", "low")
	v.SetDefault("worker_max_retry", 5)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("ingestion_inline", false)
	v.SetDefault("ingestion_content_resolve_concurrency", 4)
	v.SetDefault("ingestion_content_cache_ttl", "24h")
	v.SetDefault("ingestion_price_refresh_interval", "10m")

	v.SetDefault("sentry_sample_rate", 1.0)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server_port must be positive")
	}
	if cfg.GRPC.Enabled && cfg.GRPC.Port == cfg.Server.Port {
		return fmt.Errorf("grpc_port must differ from server_port")
	}
	if cfg.Ingestion.ContentResolveConcurrency <= 0 {
		return fmt.Errorf("ingestion_content_resolve_concurrency must be positive")
	}
	if cfg.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive")
	}
	return nil
}
