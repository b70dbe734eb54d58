package merge

import (
	"fmt"

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

// =============================================================================
// Merge Validation
// =============================================================================

// ValidationResult holds the outcome of validating a merged state.
//
// Warnings never affect validity; only errors do.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// requiredFields lists the fields every entity of a type must carry.
var requiredFields = map[string][]string{
	"service":  {"name", "host"},
	"route":    {"name"},
	"consumer": {"username"},
	"plugin":   {"name"},
	"upstream": {"name"},
}

// fieldKind is the expected shape of a well-known field.
type fieldKind int

const (
	kindText fieldKind = iota
	kindInteger
	kindNumber
	kindBool
	kindList
)

func (k fieldKind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindInteger:
		return "integer"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	case kindList:
		return "list"
	default:
		return "unknown"
	}
}

// expectedKinds maps common field names to their expected shape.
// The table is deliberately small: it covers fields shared across entity
// types, not full per-type schemas.
var expectedKinds = map[string]fieldKind{
	"name":            kindText,
	"host":            kindText,
	"path":            kindText,
	"protocol":        kindText,
	"username":        kindText,
	"port":            kindInteger,
	"retries":         kindInteger,
	"connect_timeout": kindInteger,
	"read_timeout":    kindInteger,
	"write_timeout":   kindInteger,
	"weight":          kindNumber,
	"enabled":         kindBool,
	"tags":            kindList,
	"paths":           kindList,
	"hosts":           kindList,
	"methods":         kindList,
	"protocols":       kindList,
}

// ValidateMerged checks a merged record against the minimal per-type schema.
//
// It verifies required fields are present, checks well-known fields against
// the expected-type table, and, when both original states are supplied,
// flags any field present in the merged state but absent from both
// originals as an "unknown field added" warning.
func ValidateMerged(merged entity.Record, entityType string, source, target entity.Record) ValidationResult {
	verr := errors.NewValidationErrors()
	var warnings []string

	for _, field := range requiredFields[entityType] {
		v, ok := merged[field]
		if !ok || entity.IsEmpty(v) {
			verr.AddMissing(field)
		}
	}

	flat := entity.Flatten(merged)
	for _, path := range flat.Paths {
		v, _ := flat.Get(path)
		if v == nil {
			continue
		}

		kind, known := expectedKinds[lastSegment(path)]
		if !known {
			continue
		}
		if !matchesKind(v, kind) {
			verr.Add(errors.NewTypeMismatch(path, kind.String(), v))
		}
	}

	if source != nil && target != nil {
		fs := entity.Flatten(source)
		ft := entity.Flatten(target)
		for _, path := range flat.Paths {
			if _, inSource := fs.Get(path); inSource {
				continue
			}
			if _, inTarget := ft.Get(path); inTarget {
				continue
			}
			warnings = append(warnings, fmt.Sprintf("unknown field added: %s", path))
		}
	}

	result := ValidationResult{
		Valid:    !verr.HasErrors(),
		Warnings: warnings,
	}
	for _, err := range verr.Errors {
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}

func matchesKind(v any, kind fieldKind) bool {
	switch kind {
	case kindText:
		_, ok := v.(string)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindList:
		_, ok := v.([]any)
		return ok
	case kindInteger:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		default:
			return false
		}
	case kindNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	default:
		return false
	}
}
