package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/agenttrace/spanengine/internal/middleware"
	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
)

// ContentFetcher reads stored prompt content
type ContentFetcher interface {
	Fetch(ctx context.Context, projectID uuid.UUID, key string) ([]byte, string, error)
}

// ContentHandler serves content parts that were moved to blob storage
type ContentHandler struct {
	store ContentFetcher
}

// NewContentHandler creates a new content handler. store may be nil when
// blob storage is not configured.
func NewContentHandler(store ContentFetcher) *ContentHandler {
	return &ContentHandler{store: store}
}

// GetContent handles GET /v1/content/:key
func (h *ContentHandler) GetContent(c *fiber.Ctx) error {
	projectID, ok := middleware.GetProjectID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Project ID not found")
	}
	if h.store == nil {
		return errorResponse(c, fiber.StatusNotFound, "Content storage is not configured")
	}

	data, mediaType, err := h.store.Fetch(c.UserContext(), projectID, c.Params("key"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Content not found")
		}
		return appErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, mediaType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=31536000, immutable")
	return c.Send(data)
}
