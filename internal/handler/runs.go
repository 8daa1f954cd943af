package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/middleware"
	"github.com/agenttrace/spanengine/internal/service"
)

// RunHandler receives completed workflow runs
type RunHandler struct {
	logger *zap.Logger
	sink   service.SpanSink
}

// NewRunHandler creates a new run handler
func NewRunHandler(logger *zap.Logger, sink service.SpanSink) *RunHandler {
	return &RunHandler{
		logger: logger.Named("run_handler"),
		sink:   sink,
	}
}

// SubmitRun handles POST /v1/runs
func (h *RunHandler) SubmitRun(c *fiber.Ctx) error {
	projectID, ok := middleware.GetProjectID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Project ID not found")
	}

	var run domain.RunTrace
	if ok, err := bindAndValidate(c, &run); !ok {
		return err
	}

	if err := h.sink.SubmitRun(c.UserContext(), projectID, &run); err != nil {
		h.logger.Warn("failed to submit run",
			zap.String("project_id", projectID.String()),
			zap.String("run", run.Name),
			zap.Error(err),
		)
		return appErrorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
		"nodes":  len(run.Messages),
	})
}
