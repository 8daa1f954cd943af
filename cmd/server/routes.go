package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenttrace/spanengine/internal/middleware"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	h := deps.Handlers

	// Health checks and metrics (no project required)
	h.Health.RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Use(middleware.RequireProject())
	v1.Use(deps.RateLimit.Handler())

	v1.Post("/traces", h.OTel.ReceiveTraces)
	v1.Post("/runs", h.Runs.SubmitRun)
	v1.Get("/content/:key", h.Content.GetContent)
}
