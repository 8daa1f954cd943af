package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	healthy   = pingFunc(func(context.Context) error { return nil })
	unhealthy = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func newHealthApp(deps map[string]Pinger) *fiber.App {
	app := fiber.New()
	NewHealthHandler(deps, "1.2.3").RegisterRoutes(app)
	return app
}

func TestHealthHandler_Health(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		app := newHealthApp(map[string]Pinger{"clickhouse": healthy, "redis": healthy})

		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "1.2.3", status.Version)
		assert.Equal(t, map[string]string{"clickhouse": "healthy", "redis": "healthy"}, status.Checks)
	})

	t.Run("one dependency down", func(t *testing.T) {
		app := newHealthApp(map[string]Pinger{"clickhouse": healthy, "redis": unhealthy})

		resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "unhealthy: connection refused", status.Checks["redis"])
	})

	t.Run("nil dependencies are skipped", func(t *testing.T) {
		app := newHealthApp(map[string]Pinger{"postgres": nil})

		resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		deps   map[string]Pinger
		status int
		reason string
	}{
		{"ready", map[string]Pinger{"clickhouse": healthy}, fiber.StatusOK, ""},
		{"first failure in name order", map[string]Pinger{"redis": unhealthy, "clickhouse": unhealthy}, fiber.StatusServiceUnavailable, "clickhouse unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newHealthApp(tt.deps).Test(httptest.NewRequest("GET", "/readyz", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.reason, body["reason"])
		})
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	resp, err := newHealthApp(nil).Test(httptest.NewRequest("GET", "/livez", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
