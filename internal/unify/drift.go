package unify

import (
	"strings"

	"github.com/qartal/kongsync/internal/entity"
)

// Entity is the opaque record shape the unifier operates on.
type Entity = entity.Record

// =============================================================================
// Drift Detection
// =============================================================================

// Options configures drift comparison.
type Options struct {
	// CompareFields restricts comparison to the listed fields when
	// non-empty. A field matches a leaf path exactly or as a prefix
	// ("config" matches "config.timeout"). Exclusions still apply.
	CompareFields []string

	// ExcludeFields are never compared. When nil, entity.MetadataFields
	// is used: identifier and timestamp fields differ between planes by
	// construction. Plane-specific metadata (revision counters and the
	// like) can be appended via configuration.
	ExcludeFields []string
}

// DetectDrift compares two copies of the same logical entity field by field.
//
// Both entities are flattened to leaf paths; a leaf drifts when its values
// differ under entity.ValueEqual (absent and explicitly empty compare
// equal; arrays compare as whole values). Returns whether any compared
// leaf differs and the differing paths in discovery order, deduplicated.
//
// If either input is absent there is nothing to compare and the result is
// (false, nil). Data-shape oddities never raise; they degrade to no drift.
func DetectDrift(a, b Entity, opts Options) (bool, []string) {
	if a == nil || b == nil {
		return false, nil
	}

	exclude := opts.ExcludeFields
	if exclude == nil {
		exclude = entity.MetadataFields
	}

	fa := entity.Flatten(a)
	fb := entity.Flatten(b)

	// Union of paths, a's traversal order first, then b-only paths.
	seen := make(map[string]bool, len(fa.Paths))
	paths := make([]string, 0, len(fa.Paths))
	for _, p := range fa.Paths {
		seen[p] = true
		paths = append(paths, p)
	}
	for _, p := range fb.Paths {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	var drift []string
	reported := make(map[string]bool)

	for _, path := range paths {
		if excluded(path, exclude) {
			continue
		}
		if len(opts.CompareFields) > 0 && !selected(path, opts.CompareFields) {
			continue
		}

		va, _ := fa.Get(path)
		vb, _ := fb.Get(path)
		if entity.ValueEqual(va, vb) {
			continue
		}
		if reported[path] {
			continue
		}
		reported[path] = true
		drift = append(drift, path)
	}

	return len(drift) > 0, drift
}

// excluded reports whether any segment of the path names an excluded field.
// Matching per segment also drops plane metadata nested inside sub-objects.
func excluded(path string, exclude []string) bool {
	for _, seg := range strings.Split(path, ".") {
		for _, ex := range exclude {
			if seg == ex {
				return true
			}
		}
	}
	return false
}

// selected reports whether the path matches one of the requested fields,
// exactly or as a path prefix.
func selected(path string, fields []string) bool {
	for _, f := range fields {
		if path == f || strings.HasPrefix(path, f+".") {
			return true
		}
	}
	return false
}
