package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

// Context keys
const (
	ContextKeyProjectID ContextKey = "projectID"
	ContextKeyRequestID ContextKey = "requestID"
)

// ProjectIDHeader names the project a request writes to. The gRPC receiver
// reads the same key from request metadata.
const ProjectIDHeader = "X-Project-ID"

// RequireProject resolves the project from ProjectIDHeader. Authentication
// happens in front of this service; the header is trusted.
func RequireProject() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(ProjectIDHeader)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Missing " + ProjectIDHeader + " header",
			})
		}

		projectID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Bad Request",
				"message": "Invalid project ID",
			})
		}

		c.Locals(string(ContextKeyProjectID), projectID)
		return c.Next()
	}
}

// GetProjectID gets the project ID from context
func GetProjectID(c *fiber.Ctx) (uuid.UUID, bool) {
	projectID, ok := c.Locals(string(ContextKeyProjectID)).(uuid.UUID)
	return projectID, ok
}
