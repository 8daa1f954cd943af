// Package repository contains data access implementations for spanengine.
//
// # Data Stores
//
//   - clickhouse: normalized spans, one row per span version (ReplacingMergeTree)
//   - postgres: the optional model price table read by the cost service
//   - blob: prompt content (inline images) moved out of span payloads into MinIO
//
// Interfaces are declared by the consuming service package; this package
// only holds the concrete implementations. All implementations are safe for
// concurrent use.
package repository
