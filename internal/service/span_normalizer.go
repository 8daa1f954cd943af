package service

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"golang.org/x/sync/errgroup"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/pkg/id"
	"github.com/agenttrace/spanengine/internal/pkg/indexedlist"
	"github.com/agenttrace/spanengine/internal/pkg/metrics"
	"github.com/agenttrace/spanengine/internal/pkg/otlpconv"
)

// Convention identifies the attribute scheme an instrumentation SDK used
// to record an LLM call.
type Convention string

const (
	// ConventionIndexedGenAI flattens messages into gen_ai.prompt.<i>.* keys
	ConventionIndexedGenAI Convention = "indexed_gen_ai"
	// ConventionSerializedMessages sends the prompt as one JSON string
	ConventionSerializedMessages Convention = "serialized_messages"
	// ConventionGeneric reads lmnr.span.input and lmnr.span.output
	ConventionGeneric Convention = "generic"
)

// conventionDetectors are evaluated in order; the first match wins.
// ConventionGeneric is the fallback and has no detector.
var conventionDetectors = []struct {
	convention Convention
	detect     func(spanType domain.SpanType, attrs map[string]any) bool
}{
	{ConventionIndexedGenAI, func(spanType domain.SpanType, attrs map[string]any) bool {
		_, ok := attrs[domain.AttrGenAIFirstPrompt]
		return spanType == domain.SpanTypeLLM && ok
	}},
	{ConventionSerializedMessages, func(spanType domain.SpanType, attrs map[string]any) bool {
		_, ok := attrs[domain.AttrAIPromptMessages]
		return spanType == domain.SpanTypeLLM && ok
	}},
}

// DetectConvention picks the convention for a span's raw attributes
func DetectConvention(spanType domain.SpanType, attrs map[string]any) Convention {
	for _, d := range conventionDetectors {
		if d.detect(spanType, attrs) {
			return d.convention
		}
	}
	return ConventionGeneric
}

// indexedMessageKey matches attributes consumed into Span.Input/Output
var indexedMessageKey = regexp.MustCompile(`^gen_ai\.(prompt|completion)\.\d+\.(content|role)$`)

func keepAttribute(key string) bool {
	if key == domain.AttrSpanInput || key == domain.AttrSpanOutput {
		return false
	}
	return !indexedMessageKey.MatchString(key)
}

// DefaultContentResolveConcurrency bounds concurrent fragment resolution per span
const DefaultContentResolveConcurrency = 4

// SpanNormalizer converts OTLP spans into canonical spans
type SpanNormalizer struct {
	resolver    ContentResolver
	concurrency int
	logger      *zap.Logger
}

// NewSpanNormalizer creates a normalizer. concurrency <= 0 uses the default.
func NewSpanNormalizer(resolver ContentResolver, concurrency int, logger *zap.Logger) *SpanNormalizer {
	if concurrency <= 0 {
		concurrency = DefaultContentResolveConcurrency
	}
	return &SpanNormalizer{
		resolver:    resolver,
		concurrency: concurrency,
		logger:      logger.Named("normalizer"),
	}
}

// FromOTelSpan converts one OTLP span. It never fails: undecodable parts of
// the span degrade to defaults so the span can still be stored.
func (n *SpanNormalizer) FromOTelSpan(ctx context.Context, projectID uuid.UUID, otelSpan *tracepb.Span) *domain.Span {
	raw := otlpconv.AttributesToMap(otelSpan.GetAttributes())

	attrs := domain.NewSpanAttributes(raw)
	attrs.Retain(keepAttribute)

	span := &domain.Span{
		Version:      domain.DefaultVersion,
		TraceID:      id.FromOTelTraceID(otelSpan.GetTraceId()),
		SpanID:       id.FromOTelSpanID(otelSpan.GetSpanId()),
		ParentSpanID: id.FromOTelParentSpanID(otelSpan.GetParentSpanId()),
		Name:         otelSpan.GetName(),
		StartTime:    otlpconv.UnixNanoToTime(otelSpan.GetStartTimeUnixNano()),
		EndTime:      otlpconv.UnixNanoToTime(otelSpan.GetEndTimeUnixNano()),
		SpanType:     attrs.SpanType(),
	}
	span.SetAttributes(attrs)

	convention := DetectConvention(span.SpanType, raw)
	switch convention {
	case ConventionIndexedGenAI:
		span.Input = n.inputMessages(ctx, projectID, raw)
		span.Output = outputFromCompletion(raw)
	case ConventionSerializedMessages:
		span.Input = serializedMessages(raw[domain.AttrAIPromptMessages])
		if text, ok := raw[domain.AttrAIResponseText].(string); ok {
			span.Output = text
		}
	default:
		span.Input = jsonOrString(raw[domain.AttrSpanInput])
		span.Output = jsonOrString(raw[domain.AttrSpanOutput])
	}

	metrics.RecordSpanNormalized(string(convention))
	n.logger.Debug("normalized span",
		zap.String("project_id", projectID.String()),
		zap.String("span_id", span.SpanID.String()),
		zap.String("span_type", string(span.SpanType)),
		zap.String("convention", string(convention)),
	)

	return span
}

// partSlot is one fragment awaiting resolution
type partSlot struct {
	message int
	index   int
	part    domain.InstrumentationContentPart
}

// inputMessages rebuilds gen_ai.prompt.<i>.* into chat messages. Fragments
// are resolved concurrently and written back by position.
func (n *SpanNormalizer) inputMessages(ctx context.Context, projectID uuid.UUID, attrs map[string]any) []domain.ChatMessage {
	entries := indexedlist.Entries(attrs, domain.AttrGenAIPromptPrefix, "content", indexedlist.AnyValue)

	messages := make([]domain.ChatMessage, len(entries))
	var slots []partSlot

	for i, e := range entries {
		content := e.StringOr("content", "")
		messages[i].Role = e.StringOr("role", "user")

		parts, ok := domain.ParseInstrumentationContent(content)
		if !ok {
			messages[i].Content = domain.TextContent(content)
			continue
		}

		messages[i].Content = domain.PartsContent(make([]domain.ContentPart, len(parts)))
		for j, p := range parts {
			slots = append(slots, partSlot{message: i, index: j, part: p})
		}
	}

	if len(slots) == 0 {
		return messages
	}

	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, slot := range slots {
		g.Go(func() error {
			messages[slot.message].Content.Parts[slot.index] = n.resolvePart(ctx, projectID, slot.part)
			return nil
		})
	}
	_ = g.Wait()

	return messages
}

// resolvePart falls back to the fragment's raw JSON when resolution fails
func (n *SpanNormalizer) resolvePart(ctx context.Context, projectID uuid.UUID, part domain.InstrumentationContentPart) domain.ContentPart {
	if n.resolver != nil {
		resolved, err := n.resolver.Resolve(ctx, projectID, part)
		if err == nil {
			return resolved
		}
		n.logger.Warn("failed to resolve content part",
			zap.String("project_id", projectID.String()),
			zap.String("part_type", string(part.Type)),
			zap.Error(err),
		)
	}
	metrics.RecordContentResolveFailure()
	return domain.TextPart(part.Raw())
}

// outputFromCompletion returns the completion text alone, or text and tool
// call blocks when the completion requested tools.
func outputFromCompletion(attrs map[string]any) any {
	text, hasText := attrs[domain.AttrGenAIFirstCompletion].(string)

	calls := indexedlist.Entries(attrs, domain.AttrGenAIToolCallsPrefix, "name", indexedlist.StringValue)
	if len(calls) == 0 {
		if hasText {
			return text
		}
		return nil
	}

	blocks := make([]any, 0, len(calls)+1)
	if hasText {
		blocks = append(blocks, domain.TextBlock{Content: text, Type: domain.OutputBlockText})
	}
	for _, e := range calls {
		name, _ := e.String("name")
		block := domain.ToolCallBlock{Name: name, Type: domain.OutputBlockToolCall}
		if callID, ok := e.String("id"); ok {
			block.ID = &callID
		}
		if args, ok := e.Field("arguments"); ok {
			block.Arguments = toolCallArguments(args)
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// toolCallArguments parses string arguments holding a JSON object and keeps
// everything else as sent.
func toolCallArguments(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return s
	}
	return obj
}

// serializedMessages decodes the prompt as a JSON array and keeps it as
// sent. Anything that is not an array leaves the input empty.
func serializedMessages(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var messages []any
	if err := json.Unmarshal([]byte(s), &messages); err != nil || messages == nil {
		return nil
	}
	return messages
}

// jsonOrString decodes string payloads as JSON, keeping the raw string when
// it is not JSON. Non-string values are dropped.
func jsonOrString(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return s
	}
	return decoded
}
