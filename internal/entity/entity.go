// Package entity provides the generic record representation used by the
// reconciliation core.
//
// Entities fetched from either plane are decoded into Record values: ordered
// only by their field names, opaque to the core, and compared structurally.
// The core never interprets domain fields beyond the caller-supplied key
// field and the well-known metadata fields excluded from comparison.
package entity

import (
	"fmt"
)

// Record is one entity as an arbitrary string-keyed document.
//
// Values follow JSON decoding conventions: nested objects are
// map[string]any, arrays are []any, numbers are float64.
type Record map[string]any

// MetadataFields are excluded from drift comparison by default.
// Identifier and timestamp fields differ between planes by construction
// and never indicate real drift.
var MetadataFields = []string{"id", "created_at", "updated_at"}

// StringField returns the value of a top-level field as a string.
// Returns false if the field is absent, empty, or not a scalar.
func (r Record) StringField(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}

	switch s := v.(type) {
	case string:
		if s == "" {
			return "", false
		}
		return s, true
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", s), true
	default:
		return "", false
	}
}

// ID returns the record's identifier field, if present.
func (r Record) ID() (string, bool) {
	return r.StringField("id")
}

// Clone returns a deep copy of the record. Mutating the copy never
// affects the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneValue(map[string]any(r)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Record:
		return cloneValue(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}
