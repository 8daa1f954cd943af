package domain

import (
	"encoding/json"
	"math"
	"strings"

	apperrors "github.com/agenttrace/spanengine/internal/pkg/errors"
)

// Reserved attribute keys. These are wire-level contracts with the
// instrumentation SDKs and must match bit-exactly.
const (
	AssociationPropertiesPrefix = "lmnr.association.properties."

	AttrSessionID     = AssociationPropertiesPrefix + "session_id"
	AttrUserID        = AssociationPropertiesPrefix + "user_id"
	AttrTraceType     = AssociationPropertiesPrefix + "trace_type"
	AttrLSProvider    = AssociationPropertiesPrefix + "ls_provider"
	AttrSpanPath      = "lmnr.span.path"
	AttrSpanType      = "lmnr.span.type"
	AttrSpanInput     = "lmnr.span.input"
	AttrSpanOutput    = "lmnr.span.output"
	AttrLLMNodePrompt = "lmnr.span.prompt"

	AttrGenAISystem           = "gen_ai.system"
	AttrGenAIRequestModel     = "gen_ai.request.model"
	AttrGenAIResponseModel    = "gen_ai.response.model"
	AttrGenAIPromptTokens     = "gen_ai.usage.prompt_tokens"
	AttrGenAICompletionTokens = "gen_ai.usage.completion_tokens"
	AttrGenAIInputTokens      = "gen_ai.usage.input_tokens"
	AttrGenAIOutputTokens     = "gen_ai.usage.output_tokens"
	AttrGenAITotalTokens      = "gen_ai.usage.total_tokens"
	AttrGenAIInputCost        = "gen_ai.usage.input_cost"
	AttrGenAIOutputCost       = "gen_ai.usage.output_cost"
	AttrGenAITotalCost        = "gen_ai.usage.cost"

	AttrGenAIPromptPrefix     = "gen_ai.prompt"
	AttrGenAICompletionPrefix = "gen_ai.completion"
	AttrGenAIToolCallsPrefix  = "gen_ai.completion.0.tool_calls"
	AttrGenAIFirstPrompt      = "gen_ai.prompt.0.content"
	AttrGenAIFirstCompletion  = "gen_ai.completion.0.content"

	AttrAIPromptMessages = "ai.prompt.messages"
	AttrAIResponseText   = "ai.response.text"

	// ProviderLangchain is the value wrapper libraries put in gen_ai.system
	// when the real provider lives under AttrLSProvider.
	ProviderLangchain = "Langchain"
)

// SpanAttributes is a typed view over a span's open attribute map.
// Reads that migrate legacy keys mutate the view, so callers write it back
// with Span.SetAttributes.
type SpanAttributes struct {
	attrs map[string]any
}

// NewSpanAttributes creates a facade over a copy of attrs
func NewSpanAttributes(attrs map[string]any) *SpanAttributes {
	m := make(map[string]any, len(attrs))
	for k, v := range attrs {
		m[k] = v
	}
	return &SpanAttributes{attrs: m}
}

// DecodeAttributes parses a stored attribute payload. Anything other than a
// JSON object is rejected.
func DecodeAttributes(raw string) (*SpanAttributes, error) {
	if strings.TrimSpace(raw) == "" {
		return NewSpanAttributes(nil), nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperrors.Unprocessable("span attributes must be a JSON object").WithError(err)
	}
	return &SpanAttributes{attrs: nonNil(m)}, nil
}

// Map returns the underlying map
func (a *SpanAttributes) Map() map[string]any {
	return a.attrs
}

// Get returns a raw attribute value
func (a *SpanAttributes) Get(key string) (any, bool) {
	v, ok := a.attrs[key]
	return v, ok
}

// Set writes a raw attribute value
func (a *SpanAttributes) Set(key string, value any) {
	a.attrs[key] = value
}

// Retain drops every key for which keep returns false.
func (a *SpanAttributes) Retain(keep func(key string) bool) {
	for k := range a.attrs {
		if !keep(k) {
			delete(a.attrs, k)
		}
	}
}

// SessionID returns the session association property
func (a *SpanAttributes) SessionID() (string, bool) {
	return a.str(AttrSessionID)
}

// UserID returns the user association property
func (a *SpanAttributes) UserID() (string, bool) {
	return a.str(AttrUserID)
}

// TraceType returns the trace type association property
func (a *SpanAttributes) TraceType() (TraceType, bool) {
	s, ok := a.str(AttrTraceType)
	if !ok {
		return "", false
	}
	return ParseTraceType(s)
}

// InputTokens returns the input token count, migrating the legacy
// prompt_tokens key to input_tokens when only the legacy key is present.
func (a *SpanAttributes) InputTokens() int64 {
	return a.migratingTokens(AttrGenAIInputTokens, AttrGenAIPromptTokens)
}

// CompletionTokens returns the output token count, migrating the legacy
// completion_tokens key to output_tokens when only the legacy key is present.
func (a *SpanAttributes) CompletionTokens() int64 {
	return a.migratingTokens(AttrGenAIOutputTokens, AttrGenAICompletionTokens)
}

func (a *SpanAttributes) migratingTokens(canonical, legacy string) int64 {
	if v, ok := a.attrs[canonical]; ok && isNumber(v) {
		n, _ := toInt64(v)
		return n
	}
	if v, ok := a.attrs[legacy]; ok && isNumber(v) {
		n, _ := toInt64(v)
		a.attrs[canonical] = n
		return n
	}
	return 0
}

// RequestModel returns the requested model name
func (a *SpanAttributes) RequestModel() (string, bool) {
	return a.str(AttrGenAIRequestModel)
}

// ResponseModel returns the model name reported in the response
func (a *SpanAttributes) ResponseModel() (string, bool) {
	return a.str(AttrGenAIResponseModel)
}

// ProviderName returns the normalized provider: wrapper libraries resolve
// to the provider they report, and dotted values keep their first segment
// ("openai.chat" -> "openai").
func (a *SpanAttributes) ProviderName() (string, bool) {
	system, ok := a.str(AttrGenAISystem)
	if !ok {
		return "", false
	}
	if system == ProviderLangchain {
		if p, ok := a.str(AttrLSProvider); ok {
			return p, true
		}
		return ProviderLangchain, true
	}
	first, _, _ := strings.Cut(system, ".")
	return first, true
}

// SpanType returns the declared span type. Spans without one are LLM spans
// if they carry gen_ai.system; an undecodable declaration is DEFAULT.
func (a *SpanAttributes) SpanType() SpanType {
	v, ok := a.attrs[AttrSpanType]
	if !ok {
		if _, hasSystem := a.attrs[AttrGenAISystem]; hasSystem {
			return SpanTypeLLM
		}
		return SpanTypeDefault
	}
	s, isStr := v.(string)
	if !isStr {
		return SpanTypeDefault
	}
	if t, valid := ParseSpanType(s); valid {
		return t
	}
	return SpanTypeDefault
}

// Path returns the dot-joined ancestor path
func (a *SpanAttributes) Path() (string, bool) {
	return a.str(AttrSpanPath)
}

// SetPath overwrites the span path
func (a *SpanAttributes) SetPath(path string) {
	a.attrs[AttrSpanPath] = path
}

// SetTraceType writes the trace type association property
func (a *SpanAttributes) SetTraceType(t TraceType) {
	a.attrs[AttrTraceType] = string(t)
}

// ExtendSpanPath appends segment to the path unless the path already ends
// with it. Repeated calls with the same segment are no-ops.
func (a *SpanAttributes) ExtendSpanPath(segment string) {
	path, ok := a.Path()
	if !ok {
		a.SetPath(segment)
		return
	}
	if path == segment || strings.HasSuffix(path, "."+segment) {
		return
	}
	a.SetPath(path + "." + segment)
}

// SetUsage writes token counts and costs. Model and provider keys are
// written only when set on usage.
func (a *SpanAttributes) SetUsage(usage SpanUsage) {
	a.attrs[AttrGenAIInputTokens] = usage.InputTokens
	a.attrs[AttrGenAIOutputTokens] = usage.OutputTokens
	a.attrs[AttrGenAIInputCost] = usage.InputCost
	a.attrs[AttrGenAIOutputCost] = usage.OutputCost
	a.attrs[AttrGenAITotalCost] = usage.TotalCost

	if usage.RequestModel != nil {
		a.attrs[AttrGenAIRequestModel] = *usage.RequestModel
	}
	if usage.ResponseModel != nil {
		a.attrs[AttrGenAIResponseModel] = *usage.ResponseModel
	}
	if usage.ProviderName != nil {
		a.attrs[AttrGenAISystem] = *usage.ProviderName
	}
}

// SetLLMMetaLog records the execution metadata of a workflow LLM node.
func (a *SpanAttributes) SetLLMMetaLog(log *LLMMetaLog) {
	a.attrs[AttrGenAIInputTokens] = log.InputTokenCount
	a.attrs[AttrGenAIOutputTokens] = log.OutputTokenCount
	a.attrs[AttrGenAITotalTokens] = log.TotalTokenCount
	a.attrs[AttrGenAIResponseModel] = log.Model
	a.attrs[AttrGenAISystem] = log.Provider
	a.attrs[AttrGenAITotalCost] = log.ApproximateCost
	a.attrs[AttrLLMNodePrompt] = log.Prompt
}

// TotalCost returns the span's total cost; absent or non-numeric values read as 0.
func (a *SpanAttributes) TotalCost() float64 {
	cost, _ := toFloat64(a.attrs[AttrGenAITotalCost])
	return cost
}

func (a *SpanAttributes) str(key string) (string, bool) {
	s, ok := a.attrs[key].(string)
	return s, ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

// toFloat64 converts a JSON-like number.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// toInt64 converts a JSON-like number. Non-integral values convert to 0.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		return 0, false
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return m
}
