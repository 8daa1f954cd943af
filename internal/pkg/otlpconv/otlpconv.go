// Package otlpconv converts decoded OTLP values into the JSON-like values
// stored in span attributes.
package otlpconv

import (
	"encoding/base64"
	"math"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// AnyValueToJSON converts an OTLP AnyValue. Doubles that JSON cannot
// represent (NaN, ±Inf) and unset values become nil; bytes become base64 text.
func AnyValueToJSON(v *commonpb.AnyValue) any {
	if v == nil {
		return nil
	}

	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		if math.IsNaN(val.DoubleValue) || math.IsInf(val.DoubleValue, 0) {
			return nil
		}
		return val.DoubleValue
	case *commonpb.AnyValue_BytesValue:
		return base64.StdEncoding.EncodeToString(val.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		if val.ArrayValue == nil {
			return []any{}
		}
		out := make([]any, 0, len(val.ArrayValue.Values))
		for _, item := range val.ArrayValue.Values {
			out = append(out, AnyValueToJSON(item))
		}
		return out
	case *commonpb.AnyValue_KvlistValue:
		if val.KvlistValue == nil {
			return map[string]any{}
		}
		return AttributesToMap(val.KvlistValue.Values)
	default:
		return nil
	}
}

// AttributesToMap converts an OTLP key-value list. Later duplicates win.
func AttributesToMap(kvs []*commonpb.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		if kv == nil {
			continue
		}
		out[kv.Key] = AnyValueToJSON(kv.Value)
	}
	return out
}

// UnixNanoToTime converts an OTLP timestamp to UTC. Values that overflow a
// signed nanosecond count degrade to the Unix epoch.
func UnixNanoToTime(nanos uint64) time.Time {
	if nanos > math.MaxInt64 {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(0, int64(nanos)).UTC()
}
