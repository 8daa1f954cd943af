package id

import (
	"github.com/google/uuid"
)

// TraceIDLength is the byte length of a W3C trace ID
const TraceIDLength = 16

// SpanIDLength is the byte length of a W3C span ID
const SpanIDLength = 8

// otelNamespace scopes name-based UUIDs minted for ids of non-standard length.
var otelNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// FromOTelTraceID expands OTLP trace id bytes into a span-store UUID.
// 16 bytes map directly, 8 bytes are left-padded with zeros, any other
// non-empty length hashes to a name-based UUID, and empty ids mint a fresh one.
func FromOTelTraceID(b []byte) uuid.UUID {
	return fromOTelBytes(b)
}

// FromOTelSpanID expands OTLP span id bytes using the same rule as FromOTelTraceID.
func FromOTelSpanID(b []byte) uuid.UUID {
	return fromOTelBytes(b)
}

// FromOTelParentSpanID returns nil for an empty parent id.
func FromOTelParentSpanID(b []byte) *uuid.UUID {
	if len(b) == 0 {
		return nil
	}
	u := fromOTelBytes(b)
	return &u
}

func fromOTelBytes(b []byte) uuid.UUID {
	switch len(b) {
	case 0:
		return uuid.New()
	case TraceIDLength:
		var u uuid.UUID
		copy(u[:], b)
		return u
	case SpanIDLength:
		var u uuid.UUID
		copy(u[TraceIDLength-SpanIDLength:], b)
		return u
	default:
		return uuid.NewSHA1(otelNamespace, b)
	}
}
