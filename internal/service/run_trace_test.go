package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
	"github.com/agenttrace/spanengine/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestCreateParentSpanInRunTrace(t *testing.T) {
	start := testutil.TestStartTime
	stats := domain.RunTraceStats{StartTime: start, EndTime: start.Add(time.Minute)}

	a := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeInput, NodeName: "a", Value: float64(1), StartTime: start}
	b := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeOutput, NodeName: "b", Value: float64(2), StartTime: start.Add(time.Second)}
	c := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeLLM, NodeName: "c", Value: "x", StartTime: start}
	messages := map[uuid.UUID]*domain.Message{a.ID: a, b.ID: b, c.ID: c}

	t.Run("new trace", func(t *testing.T) {
		span := CreateParentSpanInRunTrace(nil, stats, "flow", messages, domain.TraceTypeEvent)

		assert.NotEqual(t, uuid.Nil, span.TraceID)
		assert.NotEqual(t, uuid.Nil, span.SpanID)
		assert.Nil(t, span.ParentSpanID)
		assert.Equal(t, "flow", span.Name)
		assert.Equal(t, domain.SpanTypePipeline, span.SpanType)
		assert.Equal(t, domain.DefaultVersion, span.Version)
		assert.Equal(t, map[string]any{"a": float64(1)}, span.Input)
		assert.Equal(t, map[string]any{"b": float64(2)}, span.Output)
		assert.Equal(t, stats.StartTime, span.StartTime)
		assert.Equal(t, stats.EndTime, span.EndTime)
		assert.Equal(t, map[string]any{
			domain.AttrTraceType: "EVENT",
			domain.AttrSpanPath:  "flow",
		}, span.Attributes)
	})

	t.Run("inside an existing trace", func(t *testing.T) {
		current := &domain.CurrentTraceAndSpan{
			TraceID:        uuid.New(),
			ParentSpanID:   uuid.New(),
			ParentSpanPath: strPtr("agent.step"),
		}

		span := CreateParentSpanInRunTrace(current, stats, "flow", messages, domain.TraceTypeDefault)

		assert.Equal(t, current.TraceID, span.TraceID)
		require.NotNil(t, span.ParentSpanID)
		assert.Equal(t, current.ParentSpanID, *span.ParentSpanID)
		assert.Equal(t, "agent.step.flow", span.Attributes[domain.AttrSpanPath])
	})

	t.Run("existing trace without a path", func(t *testing.T) {
		current := &domain.CurrentTraceAndSpan{TraceID: uuid.New(), ParentSpanID: uuid.New()}
		span := CreateParentSpanInRunTrace(current, stats, "flow", messages, domain.TraceTypeDefault)
		assert.Equal(t, "flow", span.Attributes[domain.AttrSpanPath])
	})

	t.Run("later output wins", func(t *testing.T) {
		dup := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeOutput, NodeName: "b", Value: "late", StartTime: start.Add(time.Hour)}
		withDup := map[uuid.UUID]*domain.Message{a.ID: a, b.ID: b, dup.ID: dup}

		span := CreateParentSpanInRunTrace(nil, stats, "flow", withDup, domain.TraceTypeDefault)
		assert.Equal(t, map[string]any{"b": "late"}, span.Output)
	})
}

func TestSpansFromMessages(t *testing.T) {
	run := testutil.NewTestRun()
	messages := run.MessagesByID()
	traceID := uuid.New()
	parentID := uuid.New()

	spans := SpansFromMessages(messages, traceID, parentID, "qa-pipeline", zap.NewNop())

	require.Len(t, spans, 1)
	llm := spans[0]

	assert.Equal(t, uuid.MustParse("00000000-0000-0000-0000-000000000002"), llm.SpanID)
	assert.Equal(t, traceID, llm.TraceID)
	require.NotNil(t, llm.ParentSpanID)
	assert.Equal(t, parentID, *llm.ParentSpanID)
	assert.Equal(t, domain.SpanTypeLLM, llm.SpanType)
	assert.Equal(t, "answer", llm.Name)
	assert.Equal(t, map[string]any{"question": "what is go?"}, llm.Input)
	assert.Equal(t, "a language", llm.Output)
	assert.Equal(t, "qa-pipeline", llm.Attributes[domain.AttrSpanPath])
	assert.Equal(t, "gpt-4o-mini", llm.Attributes[domain.AttrGenAIResponseModel])
	assert.Equal(t, "openai", llm.Attributes[domain.AttrGenAISystem])
	assert.Equal(t, int64(10), llm.Attributes[domain.AttrGenAIInputTokens])
	assert.Equal(t, "Answer: what is go?", llm.Attributes[domain.AttrLLMNodePrompt])

	t.Run("semantic search nodes extend the path", func(t *testing.T) {
		search := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeSemanticSearch, NodeName: "retrieve", Value: []any{"doc"}}

		spans := SpansFromMessages(map[uuid.UUID]*domain.Message{search.ID: search}, traceID, parentID, "root", zap.NewNop())

		require.Len(t, spans, 1)
		assert.Equal(t, domain.SpanTypeDefault, spans[0].SpanType)
		assert.Equal(t, "root.retrieve", spans[0].Attributes[domain.AttrSpanPath])
		assert.NotContains(t, spans[0].Attributes, domain.AttrGenAISystem)
	})

	t.Run("unknown upstream ids are skipped", func(t *testing.T) {
		node := &domain.Message{
			ID:              uuid.New(),
			NodeType:        domain.NodeTypeLLM,
			NodeName:        "llm",
			InputMessageIDs: []uuid.UUID{uuid.New()},
		}

		spans := SpansFromMessages(map[uuid.UUID]*domain.Message{node.ID: node}, traceID, parentID, "root", zap.NewNop())

		require.Len(t, spans, 1)
		assert.Empty(t, spans[0].Input)
	})

	t.Run("children ordered by start time", func(t *testing.T) {
		first := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeLLM, NodeName: "first", StartTime: testutil.TestStartTime}
		second := &domain.Message{ID: uuid.New(), NodeType: domain.NodeTypeLLM, NodeName: "second", StartTime: testutil.TestStartTime.Add(time.Second)}

		spans := SpansFromMessages(map[uuid.UUID]*domain.Message{second.ID: second, first.ID: first}, traceID, parentID, "root", zap.NewNop())

		require.Len(t, spans, 2)
		assert.Equal(t, "first", spans[0].Name)
		assert.Equal(t, "second", spans[1].Name)
	})
}
