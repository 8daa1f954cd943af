package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agenttrace/spanengine/internal/middleware"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
	"github.com/agenttrace/spanengine/internal/validator"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string                     `json:"error"`
	Message string                     `json:"message"`
	Errors  validator.ValidationErrors `json:"errors,omitempty"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   statusName(statusCode),
		Message: message,
	})
}

// appErrorResponse maps err to its HTTP status. Errors without a status are
// reported to Sentry and hidden behind a generic 500.
func appErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		middleware.CaptureError(c, err)
		return errorResponse(c, fiber.StatusInternalServerError, "An unexpected error occurred")
	}
	if appErr.StatusCode >= fiber.StatusInternalServerError {
		middleware.CaptureError(c, err)
	}
	return errorResponse(c, appErr.StatusCode, appErr.Message)
}

// bindAndValidate parses the JSON body into v and validates it. On failure
// it writes the error response and returns false.
func bindAndValidate(c *fiber.Ctx, v any) (bool, error) {
	if err := c.BodyParser(v); err != nil {
		return false, errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := validator.Validate(v); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return false, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error:   "Validation Error",
				Message: "Request validation failed",
				Errors:  errs,
			})
		}
		return false, errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	return true, nil
}

func statusName(statusCode int) string {
	switch statusCode {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusUnsupportedMediaType:
		return "Unsupported Media Type"
	case fiber.StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	case fiber.StatusInternalServerError:
		return "Internal Server Error"
	}
	return "Error"
}
