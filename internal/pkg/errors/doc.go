// Package errors provides application error types for the span engine.
//
// # Error Types
//
//   - Validation / BadRequest: malformed request payloads (400)
//   - Unprocessable: a stored or received span that cannot be decoded (422)
//   - NotFound: missing blob or span (404)
//   - Unavailable: a dependency such as the blob store is down (503)
//   - Internal: unexpected failure (500)
//
// Workers use IsRetryable to decide between retrying a task and dropping it.
//
// # Error Wrapping
//
// Errors support wrapping with fmt.Errorf:
//
//	return fmt.Errorf("persist span: %w", apperrors.Unavailable("clickhouse down"))
package errors
