package testutil

import (
	"time"

	"github.com/google/uuid"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agenttrace/spanengine/internal/domain"
)

// Fixed OTLP ids so tests can assert on derived UUIDs.
var (
	TestTraceID      = []byte{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	TestSpanID       = []byte{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7}
	TestParentSpanID = []byte{0x53, 0x99, 0x5c, 0x3f, 0x42, 0xcd, 0x8a, 0xd8}
)

// TestStartTime is the start timestamp of fixture spans
var TestStartTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// StringAttr builds a string attribute
func StringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}}}
}

// IntAttr builds an integer attribute
func IntAttr(key string, value int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value}}}
}

// DoubleAttr builds a double attribute
func DoubleAttr(key string, value float64) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: key, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: value}}}
}

// NewOTelSpan creates an OTLP span with fixed ids lasting one second
func NewOTelSpan(name string, attrs ...*commonpb.KeyValue) *tracepb.Span {
	start := uint64(TestStartTime.UnixNano())
	return &tracepb.Span{
		TraceId:           TestTraceID,
		SpanId:            TestSpanID,
		ParentSpanId:      TestParentSpanID,
		Name:              name,
		Attributes:        attrs,
		StartTimeUnixNano: start,
		EndTimeUnixNano:   start + uint64(time.Second),
	}
}

// NewOTelLLMSpan creates an OpenAI chat span in the indexed gen_ai convention
func NewOTelLLMSpan() *tracepb.Span {
	return NewOTelSpan("openai.chat",
		StringAttr(domain.AttrGenAISystem, "openai"),
		StringAttr(domain.AttrGenAIRequestModel, "gpt-4o"),
		StringAttr(domain.AttrGenAIResponseModel, "gpt-4o-2024-08-06"),
		IntAttr(domain.AttrGenAIPromptTokens, 120),
		IntAttr(domain.AttrGenAICompletionTokens, 30),
		StringAttr("gen_ai.prompt.0.role", "system"),
		StringAttr("gen_ai.prompt.0.content", "You are terse."),
		StringAttr("gen_ai.prompt.1.role", "user"),
		StringAttr("gen_ai.prompt.1.content", "Say hi"),
		StringAttr("gen_ai.completion.0.role", "assistant"),
		StringAttr("gen_ai.completion.0.content", "hi"),
	)
}

// NewExportRequest wraps spans in an OTLP export request body
func NewExportRequest(spans ...*tracepb.Span) []*tracepb.ResourceSpans {
	return []*tracepb.ResourceSpans{{
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: spans}},
	}}
}

// NewTestRun creates a workflow run with one input, one LLM node and one output
func NewTestRun() *domain.RunTrace {
	inputID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	llmID := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	outputID := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	return &domain.RunTrace{
		Name:      "qa-pipeline",
		TraceType: domain.TraceTypeDefault,
		Stats: domain.RunTraceStats{
			StartTime: TestStartTime,
			EndTime:   TestStartTime.Add(3 * time.Second),
		},
		Messages: []domain.Message{
			{
				ID:        inputID,
				NodeType:  domain.NodeTypeInput,
				NodeName:  "question",
				Value:     "what is go?",
				StartTime: TestStartTime,
				EndTime:   TestStartTime,
			},
			{
				ID:              llmID,
				NodeType:        domain.NodeTypeLLM,
				NodeName:        "answer",
				Value:           "a language",
				StartTime:       TestStartTime.Add(time.Second),
				EndTime:         TestStartTime.Add(2 * time.Second),
				InputMessageIDs: []uuid.UUID{inputID},
				MetaLog: &domain.LLMMetaLog{
					InputTokenCount:  10,
					OutputTokenCount: 2,
					TotalTokenCount:  12,
					ApproximateCost:  0.001,
					Model:            "gpt-4o-mini",
					Provider:         "openai",
					Prompt:           "Answer: what is go?",
				},
			},
			{
				ID:              outputID,
				NodeType:        domain.NodeTypeOutput,
				NodeName:        "result",
				Value:           "a language",
				StartTime:       TestStartTime.Add(2 * time.Second),
				EndTime:         TestStartTime.Add(3 * time.Second),
				InputMessageIDs: []uuid.UUID{llmID},
			},
		},
	}
}
