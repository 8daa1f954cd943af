// Package id converts OTLP identifiers into span-store UUIDs.
//
// OTLP trace ids are 16 bytes and span ids are 8 bytes, but some SDKs send
// other lengths or nothing at all. Every length maps to a UUID:
//   - 16 bytes: used as-is
//   - 8 bytes: left-padded with zero bytes
//   - any other non-empty length: name-based (SHA-1) UUID of the bytes
//   - empty: a fresh random UUID
//
// The same bytes always produce the same UUID, so re-delivered spans keep
// their identity. All functions are safe for concurrent use.
package id
