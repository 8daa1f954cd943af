// Package service turns received telemetry into stored spans.
//
// Two inputs are supported:
//   - OTLP spans, normalized by SpanNormalizer according to the attribute
//     convention their instrumentation used
//   - completed workflow runs (RunTrace), assembled into a parent span with
//     one child per executed node
//
// SpanIngestionService finalizes both (span path, cost and token usage) and
// writes them through a SpanRepository. OTLPReceiver fans an export request
// out to a SpanSink, which is either the ingestion service itself or the
// task queue producer in the worker package.
//
// # Errors
//
// Defects in a single span never fail ingestion; missing or malformed
// fields degrade to defaults. Only storage and queue failures are returned,
// classified with the errors package so callers can tell retryable
// failures from rejected input.
package service
