package entity

import (
	"reflect"
	"sort"
	"strings"
)

// =============================================================================
// Flattening
// =============================================================================

// Flattened is a record reduced to its scalar leaves.
//
// Paths use dot notation ("config.timeout"). Nested objects are traversed;
// arrays are treated as whole-value leaves so that any element difference
// counts as one changed field rather than one per index.
type Flattened struct {
	// Paths in deterministic traversal order (keys sorted at each level).
	Paths []string

	// Values keyed by path.
	Values map[string]any
}

// Get returns the value at a path. Absent paths return (nil, false).
func (f Flattened) Get(path string) (any, bool) {
	v, ok := f.Values[path]
	return v, ok
}

// Flatten reduces a record to its leaf paths.
// A nil record flattens to zero paths.
func Flatten(r Record) Flattened {
	out := Flattened{Values: make(map[string]any)}
	flattenInto(&out, "", map[string]any(r))
	return out
}

func flattenInto(out *Flattened, prefix string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		switch v := m[k].(type) {
		case map[string]any:
			flattenInto(out, path, v)
		case Record:
			flattenInto(out, path, map[string]any(v))
		default:
			out.Paths = append(out.Paths, path)
			out.Values[path] = v
		}
	}
}

// SetPath writes a value at a dot-separated path, creating intermediate
// objects as needed. Existing non-object intermediates are replaced.
func SetPath(r Record, path string, value any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(r)

	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}

	cur[parts[len(parts)-1]] = value
}

// =============================================================================
// Comparison
// =============================================================================

// IsEmpty reports whether a value is absent for comparison purposes.
// An explicit null, empty string, empty array, or empty object carries the
// same meaning as a missing field on the other side.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// ValueEqual compares two leaf values structurally.
// Numeric values are compared after normalization so an int decoded from
// one source equals the equivalent float64 decoded from JSON. Absent and
// explicitly empty values compare equal.
func ValueEqual(a, b any) bool {
	if IsEmpty(a) && IsEmpty(b) {
		return true
	}

	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}

	return reflect.DeepEqual(normalize(a), normalize(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// normalize rewrites nested numbers so DeepEqual treats mixed decodings
// of the same document as equal.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case Record:
		return normalize(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	default:
		if f, ok := toFloat(v); ok {
			return f
		}
		return v
	}
}
