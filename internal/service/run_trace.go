package service

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
)

// childSpanNodeTypes are the workflow node types recorded as child spans
var childSpanNodeTypes = map[string]domain.SpanType{
	domain.NodeTypeLLM:            domain.SpanTypeLLM,
	domain.NodeTypeSemanticSearch: domain.SpanTypeDefault,
}

// CreateParentSpanInRunTrace builds the PIPELINE span standing for a whole
// workflow run. current is the enclosing trace context and may be nil, in
// which case the run starts a new trace.
func CreateParentSpanInRunTrace(
	current *domain.CurrentTraceAndSpan,
	stats domain.RunTraceStats,
	name string,
	messages map[uuid.UUID]*domain.Message,
	traceType domain.TraceType,
) *domain.Span {
	traceID := uuid.New()
	var parentSpanID *uuid.UUID
	path := name

	if current != nil {
		traceID = current.TraceID
		parent := current.ParentSpanID
		parentSpanID = &parent
		if current.ParentSpanPath != nil {
			path = *current.ParentSpanPath + "." + name
		}
	}

	inputs := make(map[string]any)
	outputs := make(map[string]any)
	for _, msg := range orderedMessages(messages) {
		switch msg.NodeType {
		case domain.NodeTypeInput:
			inputs[msg.NodeName] = msg.Value
		case domain.NodeTypeOutput:
			outputs[msg.NodeName] = msg.Value
		}
	}

	attrs := domain.NewSpanAttributes(nil)
	attrs.SetTraceType(traceType)
	attrs.SetPath(path)

	span := &domain.Span{
		Version:      domain.DefaultVersion,
		SpanID:       uuid.New(),
		TraceID:      traceID,
		ParentSpanID: parentSpanID,
		Name:         name,
		Input:        inputs,
		Output:       outputs,
		SpanType:     domain.SpanTypePipeline,
		StartTime:    stats.StartTime,
		EndTime:      stats.EndTime,
	}
	span.SetAttributes(attrs)
	return span
}

// SpansFromMessages builds one child span per LLM or SemanticSearch node of a
// run. LLM spans keep the parent path unchanged: the span name is appended
// later, when the span is finalized, the same way as for instrumented LLM spans.
func SpansFromMessages(
	messages map[uuid.UUID]*domain.Message,
	traceID uuid.UUID,
	parentSpanID uuid.UUID,
	parentPath string,
	logger *zap.Logger,
) []*domain.Span {
	var spans []*domain.Span

	for _, msg := range orderedMessages(messages) {
		spanType, ok := childSpanNodeTypes[msg.NodeType]
		if !ok {
			continue
		}

		path := parentPath
		if msg.NodeType != domain.NodeTypeLLM {
			path = parentPath + "." + msg.NodeName
		}

		inputs := make(map[string]any, len(msg.InputMessageIDs))
		for _, inputID := range msg.InputMessageIDs {
			upstream, found := messages[inputID]
			if !found {
				logger.Warn("run node references unknown upstream node",
					zap.String("node_id", msg.ID.String()),
					zap.String("upstream_id", inputID.String()),
				)
				continue
			}
			inputs[upstream.NodeName] = upstream.Value
		}

		attrs := domain.NewSpanAttributes(nil)
		if msg.MetaLog != nil {
			attrs.SetLLMMetaLog(msg.MetaLog)
		}
		attrs.SetPath(path)

		parent := parentSpanID
		span := &domain.Span{
			Version:      domain.DefaultVersion,
			SpanID:       msg.ID,
			TraceID:      traceID,
			ParentSpanID: &parent,
			Name:         msg.NodeName,
			Input:        inputs,
			Output:       msg.Value,
			SpanType:     spanType,
			StartTime:    msg.StartTime,
			EndTime:      msg.EndTime,
		}
		span.SetAttributes(attrs)
		spans = append(spans, span)
	}

	return spans
}

// orderedMessages sorts nodes by start time, then id
func orderedMessages(messages map[uuid.UUID]*domain.Message) []*domain.Message {
	out := make([]*domain.Message, 0, len(messages))
	for _, msg := range messages {
		if msg != nil {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
