package worker

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
)

// Server is the worker server
type Server struct {
	logger *zap.Logger
	config *config.Config
	server *asynq.Server
	mux    *asynq.ServeMux
}

// RedisOpt returns the asynq connection options for cfg
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// Queues returns queue priorities keyed by configured queue name
func Queues(cfg config.WorkerConfig) map[string]int {
	return map[string]int{
		cfg.QueueCritical: 6,
		cfg.QueueDefault:  3,
		cfg.QueueLow:      1,
	}
}

// NewServer creates a new worker server
func NewServer(
	logger *zap.Logger,
	cfg *config.Config,
	ingester Ingester,
) *Server {
	server := asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Concurrency:  cfg.Worker.Concurrency,
			Queues:       Queues(cfg.Worker),
			ErrorHandler: asynq.ErrorHandlerFunc(errorHandler(logger)),
			Logger:       &asynqLogger{logger: logger},
		},
	)

	return &Server{
		logger: logger,
		config: cfg,
		server: server,
		mux:    NewServeMux(logger, ingester),
	}
}

// NewServeMux registers the span task handlers
func NewServeMux(logger *zap.Logger, ingester Ingester) *asynq.ServeMux {
	spanWorker := NewSpanWorker(logger, ingester)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSpanIngest, spanWorker.ProcessSpanTask)
	mux.HandleFunc(TypeRunIngest, spanWorker.ProcessRunTask)
	return mux
}

// errorHandler logs failed tasks and reports them to Sentry. A task that
// will be retried is logged at warn level only.
func errorHandler(logger *zap.Logger) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		fields := []zap.Field{
			zap.String("type", task.Type()),
			zap.Int("retry", retried),
			zap.Int("max_retry", maxRetry),
			zap.Error(err),
		}

		if retried < maxRetry && !isSkipRetry(err) {
			logger.Warn("task processing failed", fields...)
			return
		}

		logger.Error("task processing failed permanently", fields...)
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("task_type", task.Type())
			sentry.CaptureException(err)
		})
	}
}

// Start starts the worker server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
	)

	if err := s.server.Run(s.mux); err != nil {
		return fmt.Errorf("worker server stopped: %w", err)
	}
	return nil
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
}

// asynqLogger adapts zap.Logger to asynq.Logger
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
