// Package handler contains the HTTP receivers of the span engine.
//
// Routes:
//   - POST /v1/traces: OTLP/HTTP export, protobuf or JSON encoded
//   - POST /v1/runs: completed workflow runs
//   - GET /v1/content/:key: prompt content moved to blob storage
//   - /health, /livez, /readyz, /version: health checks
//
// Every /v1 route requires the X-Project-ID header.
//
// # Error Handling
//
// Handlers convert apperrors to HTTP status codes. Decoding problems are
// 400s; a sink outage is a 503 so OTLP exporters retry.
//
// # Thread Safety
//
// All handlers are safe for concurrent use.
package handler
