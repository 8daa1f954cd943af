package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultVersion is the schema version stamped on every span produced by this service.
const DefaultVersion = "0.1"

// SpanType classifies a span
type SpanType string

const (
	SpanTypeDefault    SpanType = "DEFAULT"
	SpanTypeLLM        SpanType = "LLM"
	SpanTypePipeline   SpanType = "PIPELINE"
	SpanTypeExecutor   SpanType = "EXECUTOR"
	SpanTypeEvaluator  SpanType = "EVALUATOR"
	SpanTypeEvaluation SpanType = "EVALUATION"
)

// IsValid checks if the span type is valid
func (t SpanType) IsValid() bool {
	switch t {
	case SpanTypeDefault, SpanTypeLLM, SpanTypePipeline, SpanTypeExecutor, SpanTypeEvaluator, SpanTypeEvaluation:
		return true
	}
	return false
}

// ParseSpanType decodes a stored span type name.
func ParseSpanType(s string) (SpanType, bool) {
	t := SpanType(s)
	return t, t.IsValid()
}

// TraceType classifies the trace a span belongs to
type TraceType string

const (
	TraceTypeDefault    TraceType = "DEFAULT"
	TraceTypeEvent      TraceType = "EVENT"
	TraceTypeEvaluation TraceType = "EVALUATION"
)

// IsValid checks if the trace type is valid
func (t TraceType) IsValid() bool {
	switch t {
	case TraceTypeDefault, TraceTypeEvent, TraceTypeEvaluation:
		return true
	}
	return false
}

// ParseTraceType decodes a stored trace type name.
func ParseTraceType(s string) (TraceType, bool) {
	t := TraceType(s)
	return t, t.IsValid()
}

// Span is the canonical unit of work stored for a project.
// Attributes is an open, namespaced map of JSON-like values; the typed
// view over it is SpanAttributes.
type Span struct {
	Version      string         `json:"version"`
	SpanID       uuid.UUID      `json:"spanId"`
	TraceID      uuid.UUID      `json:"traceId"`
	ParentSpanID *uuid.UUID     `json:"parentSpanId"`
	Name         string         `json:"name"`
	Attributes   map[string]any `json:"attributes"`
	Input        any            `json:"input"`
	Output       any            `json:"output"`
	SpanType     SpanType       `json:"spanType"`
	StartTime    time.Time      `json:"startTime"`
	EndTime      time.Time      `json:"endTime"`
	Events       any            `json:"events,omitempty"`
	Labels       any            `json:"labels,omitempty"`
}

// GetAttributes returns the typed view over the span's attribute map.
// Writes through the returned value are visible on the span only after SetAttributes.
func (s *Span) GetAttributes() *SpanAttributes {
	return NewSpanAttributes(s.Attributes)
}

// SetAttributes replaces the span's attribute map with the facade's contents.
func (s *Span) SetAttributes(attrs *SpanAttributes) {
	s.Attributes = attrs.Map()
}

// AttributesJSON encodes the attribute map for storage.
func (s *Span) AttributesJSON() (string, error) {
	if s.Attributes == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s.Attributes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CurrentTraceAndSpan carries the enclosing trace context into the hierarchy builder.
type CurrentTraceAndSpan struct {
	TraceID        uuid.UUID `json:"traceId" validate:"required"`
	ParentSpanID   uuid.UUID `json:"parentSpanId" validate:"required"`
	ParentSpanPath *string   `json:"parentSpanPath,omitempty"`
}

// SpanUsage is the token and cost summary written onto LLM spans
type SpanUsage struct {
	InputTokens   int64   `json:"inputTokens"`
	OutputTokens  int64   `json:"outputTokens"`
	TotalTokens   int64   `json:"totalTokens"`
	InputCost     float64 `json:"inputCost"`
	OutputCost    float64 `json:"outputCost"`
	TotalCost     float64 `json:"totalCost"`
	RequestModel  *string `json:"requestModel,omitempty"`
	ResponseModel *string `json:"responseModel,omitempty"`
	ProviderName  *string `json:"providerName,omitempty"`
}
