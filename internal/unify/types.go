// Package unify merges per-plane entity collections into one unified view
// and detects field-level drift between the two planes' copies.
//
// The unifier implements the first stage of the reconciliation pipeline:
//
//  1. Index both plane's entities by a caller-supplied key field
//  2. Union the keys in ascending lexical order
//  3. Classify each key as gateway-only, control-plane-only, or both
//  4. For dual-presence entities, compare leaf fields and record drift
//
// Unification is a pure computation: it reads its inputs, allocates the
// unified view, and shares no mutable state with other callers.
package unify

// =============================================================================
// Sources
// =============================================================================

// Source indicates where an entity currently exists.
type Source string

const (
	// SourceGateway means the entity exists only in the gateway data plane.
	SourceGateway Source = "gateway"

	// SourceControlPlane means the entity exists only in the control plane.
	SourceControlPlane Source = "control_plane"

	// SourceBoth means the entity is present in both planes.
	SourceBoth Source = "both"
)

// =============================================================================
// Unified Entity
// =============================================================================

// UnifiedEntity wraps one logical entity matched across both planes.
//
// Constructed once per pass by MergeEntities and immutable thereafter.
// The gateway's copy is preferred as canonical when the entity exists in
// both planes.
type UnifiedEntity struct {
	// Key is the value of the key field used for cross-plane matching.
	Key string

	// Entity is the canonical value (gateway copy when present in both).
	Entity Entity

	// Source reflects presence: gateway, control_plane, or both.
	Source Source

	// GatewayID and ControlPlaneID are the per-plane identifiers.
	// Either may be empty when the entity is absent from that plane.
	GatewayID      string
	ControlPlaneID string

	// HasDrift is meaningful only when Source is both: true iff at least
	// one compared leaf field differs between the two copies.
	HasDrift bool

	// DriftFields lists the differing leaf paths in discovery order,
	// deduplicated. Empty when HasDrift is false.
	DriftFields []string

	// Gateway and ControlPlane keep the original per-plane copies for
	// deep comparison and for constructing reversing operations.
	Gateway      Entity
	ControlPlane Entity
}

// =============================================================================
// Unified Entity List
// =============================================================================

// UnifiedEntityList is the ordered result of one unification pass.
type UnifiedEntityList struct {
	Entities []UnifiedEntity
}

// Len returns the number of unified entities.
func (l *UnifiedEntityList) Len() int {
	return len(l.Entities)
}

// FilterBySource returns entities present in the requested plane.
//
// Filtering by gateway or control_plane includes both-sourced entries,
// since those entities are present in that plane. Filtering by both
// returns only dual-presence entries.
func (l *UnifiedEntityList) FilterBySource(source Source) []UnifiedEntity {
	var out []UnifiedEntity
	for _, e := range l.Entities {
		switch source {
		case SourceBoth:
			if e.Source == SourceBoth {
				out = append(out, e)
			}
		case SourceGateway, SourceControlPlane:
			if e.Source == source || e.Source == SourceBoth {
				out = append(out, e)
			}
		}
	}
	return out
}

// GatewayOnly returns entities that exist only in the gateway.
func (l *UnifiedEntityList) GatewayOnly() []UnifiedEntity {
	return l.filterExact(SourceGateway)
}

// ControlPlaneOnly returns entities that exist only in the control plane.
func (l *UnifiedEntityList) ControlPlaneOnly() []UnifiedEntity {
	return l.filterExact(SourceControlPlane)
}

// InBoth returns entities present in both planes, drifted or not.
func (l *UnifiedEntityList) InBoth() []UnifiedEntity {
	return l.filterExact(SourceBoth)
}

// WithDrift returns dual-presence entities whose compared fields differ.
func (l *UnifiedEntityList) WithDrift() []UnifiedEntity {
	var out []UnifiedEntity
	for _, e := range l.Entities {
		if e.Source == SourceBoth && e.HasDrift {
			out = append(out, e)
		}
	}
	return out
}

// FullySynced returns dual-presence entities with no drift.
func (l *UnifiedEntityList) FullySynced() []UnifiedEntity {
	var out []UnifiedEntity
	for _, e := range l.Entities {
		if e.Source == SourceBoth && !e.HasDrift {
			out = append(out, e)
		}
	}
	return out
}

func (l *UnifiedEntityList) filterExact(source Source) []UnifiedEntity {
	var out []UnifiedEntity
	for _, e := range l.Entities {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// Stats summarizes one unification pass.
type Stats struct {
	Total        int
	GatewayOnly  int
	ControlOnly  int
	InBoth       int
	WithDrift    int
	FullySynced  int
}

// Stats calculates summary counts for the list.
func (l *UnifiedEntityList) Stats() Stats {
	s := Stats{Total: len(l.Entities)}
	for _, e := range l.Entities {
		switch e.Source {
		case SourceGateway:
			s.GatewayOnly++
		case SourceControlPlane:
			s.ControlOnly++
		case SourceBoth:
			s.InBoth++
			if e.HasDrift {
				s.WithDrift++
			} else {
				s.FullySynced++
			}
		}
	}
	return s
}
