package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow node types that become child spans of a run
const (
	NodeTypeInput          = "Input"
	NodeTypeOutput         = "Output"
	NodeTypeLLM            = "LLM"
	NodeTypeSemanticSearch = "SemanticSearch"
)

// LLMMetaLog is the execution metadata recorded by an LLM node
type LLMMetaLog struct {
	InputTokenCount  int64   `json:"inputTokenCount"`
	OutputTokenCount int64   `json:"outputTokenCount"`
	TotalTokenCount  int64   `json:"totalTokenCount"`
	ApproximateCost  float64 `json:"approximateCost"`
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Prompt           string  `json:"prompt"`
}

// Message is one node execution record of a workflow run
type Message struct {
	ID              uuid.UUID   `json:"id" validate:"required"`
	NodeType        string      `json:"nodeType" validate:"required"`
	NodeName        string      `json:"nodeName" validate:"required"`
	Value           any         `json:"value"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
	MetaLog         *LLMMetaLog `json:"metaLog,omitempty"`
	InputMessageIDs []uuid.UUID `json:"inputMessageIds,omitempty"`
}

// RunTraceStats summarizes a completed workflow run
type RunTraceStats struct {
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required"`
	TotalTokenCount int64     `json:"totalTokenCount"`
	ApproximateCost float64   `json:"approximateCost"`
}

// RunTrace is a completed workflow run submitted for span assembly
type RunTrace struct {
	Name      string               `json:"name" validate:"required,max=255"`
	TraceType TraceType            `json:"traceType"`
	Current   *CurrentTraceAndSpan `json:"current,omitempty"`
	Stats     RunTraceStats        `json:"stats" validate:"required"`
	Messages  []Message            `json:"messages" validate:"dive"`
}

// MessagesByID indexes the run's node records
func (r *RunTrace) MessagesByID() map[uuid.UUID]*Message {
	out := make(map[uuid.UUID]*Message, len(r.Messages))
	for i := range r.Messages {
		out[r.Messages[i].ID] = &r.Messages[i]
	}
	return out
}
