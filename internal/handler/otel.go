package handler

import (
	"mime"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/agenttrace/spanengine/internal/middleware"
	"github.com/agenttrace/spanengine/internal/service"
)

// OTLP/HTTP content types
const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// OTelHandler receives OTLP/HTTP trace exports
type OTelHandler struct {
	logger   *zap.Logger
	receiver *service.OTLPReceiver
}

// NewOTelHandler creates a new OpenTelemetry handler
func NewOTelHandler(logger *zap.Logger, receiver *service.OTLPReceiver) *OTelHandler {
	return &OTelHandler{
		logger:   logger.Named("otel_handler"),
		receiver: receiver,
	}
}

// ReceiveTraces handles POST /v1/traces. The response uses the request's encoding.
func (h *OTelHandler) ReceiveTraces(c *fiber.Ctx) error {
	projectID, ok := middleware.GetProjectID(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Project ID not found")
	}

	mediaType, _, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil {
		mediaType = ""
	}

	var request coltracepb.ExportTraceServiceRequest
	switch mediaType {
	case ContentTypeProtobuf, "application/protobuf":
		err = proto.Unmarshal(c.Body(), &request)
	case ContentTypeJSON:
		err = protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(c.Body(), &request)
	default:
		return errorResponse(c, fiber.StatusUnsupportedMediaType,
			"Content-Type must be "+ContentTypeProtobuf+" or "+ContentTypeJSON)
	}
	if err != nil {
		h.logger.Debug("invalid OTLP body", zap.String("content_type", mediaType), zap.Error(err))
		return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP request body")
	}

	response, err := h.receiver.Export(c.UserContext(), projectID, &request)
	if err != nil {
		return appErrorResponse(c, err)
	}

	var body []byte
	if mediaType == ContentTypeJSON {
		body, err = protojson.Marshal(response)
	} else {
		body, err = proto.Marshal(response)
	}
	if err != nil {
		return appErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, mediaType)
	return c.Status(fiber.StatusOK).Send(body)
}
