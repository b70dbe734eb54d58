// Package merge implements three-way merge analysis for entity states.
//
// Given a source state, a target state, and an optional baseline, the
// analyzer classifies every leaf field as changed-only-in-source,
// changed-only-in-target, or changed-in-both. A merge is automatic only
// when the two sides changed disjoint fields; deciding which value wins in
// a true conflict is out of scope and left to the operator.
package merge

import (
	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

// =============================================================================
// Merge Analysis
// =============================================================================

// Analysis classifies leaf-field changes relative to a baseline.
//
// The three lists are pairwise disjoint and their union is exactly the set
// of leaf paths that differ from baseline in at least one of source/target.
type Analysis struct {
	// CanAutoMerge is true iff Conflicting is empty.
	CanAutoMerge bool

	// SourceOnly are paths changed only in the source state.
	SourceOnly []string

	// TargetOnly are paths changed only in the target state.
	TargetOnly []string

	// Conflicting are paths changed in both states.
	Conflicting []string
}

// AnalyzePotential computes the merge analysis for (source, target, baseline).
//
// The baseline defaults to the target state when nil, which reduces the
// analysis to "what did the source change". Paths unchanged on both sides
// are omitted. Array-valued fields follow the same leaf-level rule: the
// whole value either changed or it did not.
func AnalyzePotential(source, target, baseline entity.Record) Analysis {
	if baseline == nil {
		baseline = target
	}

	fs := entity.Flatten(source)
	ft := entity.Flatten(target)
	fb := entity.Flatten(baseline)

	paths := unionPaths(fs.Paths, ft.Paths, fb.Paths)

	a := Analysis{}
	for _, path := range paths {
		sv, _ := fs.Get(path)
		tv, _ := ft.Get(path)
		bv, _ := fb.Get(path)

		sourceChanged := !entity.ValueEqual(sv, bv)
		targetChanged := !entity.ValueEqual(tv, bv)

		switch {
		case sourceChanged && targetChanged:
			a.Conflicting = append(a.Conflicting, path)
		case sourceChanged:
			a.SourceOnly = append(a.SourceOnly, path)
		case targetChanged:
			a.TargetOnly = append(a.TargetOnly, path)
		}
	}

	a.CanAutoMerge = len(a.Conflicting) == 0
	return a
}

// unionPaths merges path lists preserving first-seen order.
func unionPaths(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// =============================================================================
// Auto-Merge
// =============================================================================

// ComputeAutoMerge produces the merged record for a non-conflicting
// analysis.
//
// The result starts from a deep copy of target and overwrites each
// source-only path with the source value; target-only and unchanged paths
// are untouched. Calling this with a conflicting analysis is a programmer
// error and fails with errors.ErrUnmergeable.
func ComputeAutoMerge(source, target entity.Record, a Analysis) (entity.Record, error) {
	if !a.CanAutoMerge {
		return nil, errors.Wrapf(errors.ErrUnmergeable, "%d conflicting fields", len(a.Conflicting))
	}

	merged := target.Clone()
	if merged == nil {
		merged = entity.Record{}
	}

	fs := entity.Flatten(source)
	for _, path := range a.SourceOnly {
		v, ok := fs.Get(path)
		if !ok {
			// Source removed the field; mirror the removal as explicit null.
			v = nil
		}
		entity.SetPath(merged, path, v)
	}

	return merged, nil
}
