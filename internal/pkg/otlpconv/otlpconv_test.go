package otlpconv

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

func strValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func TestAnyValueToJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    *commonpb.AnyValue
		expected any
	}{
		{"nil", nil, nil},
		{"unset", &commonpb.AnyValue{}, nil},
		{"string", strValue("hello"), "hello"},
		{"bool", &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: true}}, true},
		{"int", &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 42}}, int64(42)},
		{"double", &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: 1.5}}, 1.5},
		{"nan", &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: math.NaN()}}, nil},
		{"inf", &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: math.Inf(1)}}, nil},
		{"bytes", &commonpb.AnyValue{Value: &commonpb.AnyValue_BytesValue{BytesValue: []byte("hi")}}, "aGk="},
		{
			"array",
			&commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{
				Values: []*commonpb.AnyValue{strValue("a"), {Value: &commonpb.AnyValue_IntValue{IntValue: 1}}},
			}}},
			[]any{"a", int64(1)},
		},
		{
			"kvlist",
			&commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{
				Values: []*commonpb.KeyValue{{Key: "k", Value: strValue("v")}},
			}}},
			map[string]any{"k": "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnyValueToJSON(tt.value))
		})
	}
}

func TestAttributesToMap(t *testing.T) {
	m := AttributesToMap([]*commonpb.KeyValue{
		{Key: "a", Value: strValue("1")},
		nil,
		{Key: "a", Value: strValue("2")},
		{Key: "b"},
	})

	assert.Equal(t, map[string]any{"a": "2", "b": nil}, m)
}

func TestUnixNanoToTime(t *testing.T) {
	t.Run("converts to utc", func(t *testing.T) {
		ts := UnixNanoToTime(1_700_000_000_000_000_000)
		assert.Equal(t, time.UTC, ts.Location())
		assert.Equal(t, int64(1_700_000_000), ts.Unix())
	})

	t.Run("overflow degrades to epoch", func(t *testing.T) {
		ts := UnixNanoToTime(math.MaxUint64)
		assert.Equal(t, time.Unix(0, 0).UTC(), ts)
	})
}
