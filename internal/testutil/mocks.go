// Package testutil provides shared test fixtures and mocks.
package testutil

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/middleware"
)

// TestProjectMiddleware creates a middleware that sets the project ID in context.
func TestProjectMiddleware(projectID uuid.UUID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(string(middleware.ContextKeyProjectID), projectID)
		return c.Next()
	}
}

// MockSpanRepository is a testify mock of the span storage collaborator
type MockSpanRepository struct {
	mock.Mock
}

// Create records the call
func (m *MockSpanRepository) Create(ctx context.Context, projectID uuid.UUID, span *domain.Span) error {
	args := m.Called(ctx, projectID, span)
	return args.Error(0)
}

// CreateBatch records the call
func (m *MockSpanRepository) CreateBatch(ctx context.Context, projectID uuid.UUID, spans []*domain.Span) error {
	args := m.Called(ctx, projectID, spans)
	return args.Error(0)
}

// MockSpanSink is a testify mock of service.SpanSink
type MockSpanSink struct {
	mock.Mock
}

// SubmitSpan records the call
func (m *MockSpanSink) SubmitSpan(ctx context.Context, projectID uuid.UUID, span *tracepb.Span) error {
	return m.Called(ctx, projectID, span).Error(0)
}

// SubmitRun records the call
func (m *MockSpanSink) SubmitRun(ctx context.Context, projectID uuid.UUID, run *domain.RunTrace) error {
	return m.Called(ctx, projectID, run).Error(0)
}
