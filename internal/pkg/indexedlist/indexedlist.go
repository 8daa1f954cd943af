// Package indexedlist rebuilds ordered records from flattened attribute keys
// of the form <prefix>.<i>.<field>.
//
// Instrumentation SDKs cannot send nested lists as span attributes, so a list
// of messages becomes gen_ai.prompt.0.content, gen_ai.prompt.0.role,
// gen_ai.prompt.1.content and so on. Entries visits positions 0, 1, 2, ...
// and stops at the first position whose marker field is missing or rejected.
// Records after a gap are never returned.
package indexedlist

import (
	"strconv"
)

// Accept decides whether a marker value starts a record.
type Accept func(value any) bool

// AnyValue accepts every present marker.
func AnyValue(any) bool { return true }

// StringValue accepts only string markers.
func StringValue(v any) bool {
	_, ok := v.(string)
	return ok
}

// Entry is one reconstructed record
type Entry struct {
	Index  int
	prefix string
	attrs  map[string]any
}

// Key returns the flattened key of field for this entry
func (e Entry) Key(field string) string {
	return Key(e.prefix, e.Index, field)
}

// Field returns the raw value of field
func (e Entry) Field(field string) (any, bool) {
	v, ok := e.attrs[e.Key(field)]
	return v, ok
}

// String returns field if it holds a string
func (e Entry) String(field string) (string, bool) {
	s, ok := e.attrs[e.Key(field)].(string)
	return s, ok
}

// StringOr returns field if it holds a string, otherwise def
func (e Entry) StringOr(field, def string) string {
	if s, ok := e.String(field); ok {
		return s
	}
	return def
}

// Key builds <prefix>.<index>.<field>
func Key(prefix string, index int, field string) string {
	return prefix + "." + strconv.Itoa(index) + "." + field
}

// Entries returns the contiguous records under prefix, using marker as the
// field whose presence (and acceptance) defines a record.
func Entries(attrs map[string]any, prefix, marker string, accept Accept) []Entry {
	if accept == nil {
		accept = AnyValue
	}

	var entries []Entry
	for i := 0; ; i++ {
		v, ok := attrs[Key(prefix, i, marker)]
		if !ok || !accept(v) {
			return entries
		}
		entries = append(entries, Entry{Index: i, prefix: prefix, attrs: attrs})
	}
}
