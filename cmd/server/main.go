package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/config"
	"github.com/agenttrace/spanengine/internal/grpc"
	"github.com/agenttrace/spanengine/internal/middleware"
	"github.com/agenttrace/spanengine/internal/pkg/logger"
)

const appVersion = "0.1.0"

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

	// Initialize Sentry if configured
	if cfg.Sentry.Release == "" {
		cfg.Sentry.Release = "spanengine@" + appVersion
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Server.Env
	}
	sentryEnabled := cfg.Sentry.Enabled()
	if err := middleware.InitSentry(cfg.Sentry); err != nil {
		log.Error("failed to initialize Sentry", zap.Error(err))
		sentryEnabled = false
	} else if sentryEnabled {
		log.Info("Sentry initialized", zap.String("environment", cfg.Sentry.Environment))
		defer middleware.FlushSentry(5 * time.Second)
	}

	// Initialize dependencies
	deps, err := initDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "spanengine",
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler:          errorHandler(log, sentryEnabled),
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.RecoverWithSentry(log, sentryEnabled))
	app.Use(middleware.Logger(middleware.DefaultLoggerConfig(log)))
	app.Use(middleware.Metrics())

	registerRoutes(app, deps)

	// Start OTLP/gRPC receiver
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.GRPC.Port))
		if err != nil {
			log.Fatal("failed to listen for gRPC", zap.Error(err))
		}
		grpcServer = grpc.NewServer(deps.OTLPGRPC, cfg.Server.BodyLimitMB*1024*1024, log)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server failed", zap.Error(err))
			}
		}()
	}

	// Start HTTP server
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info("starting server", zap.String("addr", addr), zap.Bool("inline_ingestion", cfg.Ingestion.Inline))
		if err := app.Listen(addr); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server stopped")
}

// errorHandler renders errors returned by handlers that did not write a response
func errorHandler(log *zap.Logger, sentryEnabled bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		log.Error("request error",
			zap.Int("status", code),
			zap.String("error", err.Error()),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
		)

		if sentryEnabled && code >= fiber.StatusInternalServerError {
			middleware.CaptureError(c, err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   statusText(code),
			"message": message,
		})
	}
}

func statusText(code int) string {
	if text := utils.StatusMessage(code); text != "" {
		return text
	}
	return "Error"
}
