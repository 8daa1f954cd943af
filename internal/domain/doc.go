// Package domain contains the canonical span model shared by every ingestion path.
//
// This package defines:
//   - Span, SpanType and TraceType
//   - SpanAttributes, the typed view over a span's open attribute map
//   - Chat message content types produced from instrumentation prompts
//   - Workflow run records (Message, RunTraceStats) used to build run hierarchies
//
// # Attribute Keys
//
// Attribute keys are namespaced strings agreed with the instrumentation
// SDKs (gen_ai.*, lmnr.*, ai.*). Components read and write them only
// through SpanAttributes so legacy keys are migrated in one place.
//
// # Span Paths
//
// lmnr.span.path holds the dot-joined names of a span's ancestors.
// ExtendSpanPath appends a segment unless the path already ends with it.
package domain
