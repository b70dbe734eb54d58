package unify

import (
	"sort"

	"github.com/qartal/kongsync/internal/logging"
)

var log = logging.Component("unify")

// =============================================================================
// Entity Unifier
// =============================================================================

// MergeEntities merges the two planes' entity collections into one unified
// view, matched by keyField.
//
// The algorithm:
//  1. Index each input list by keyField (entries lacking the field are
//     dropped and never reported as drift)
//  2. Union the keys in ascending lexical order, so output is
//     deterministic for tests and logs
//  3. Emit one UnifiedEntity per key with the correct source; for keys
//     present on both sides, run drift detection
//
// Duplicate keys within one plane keep the last occurrence, matching the
// plane API's own precedence for repeated names.
func MergeEntities(gateway, controlPlane []Entity, keyField string, opts Options) *UnifiedEntityList {
	gwByKey, gwDropped := indexByKey(gateway, keyField)
	cpByKey, cpDropped := indexByKey(controlPlane, keyField)

	if gwDropped+cpDropped > 0 {
		log.Debug("entities without key field dropped",
			"key_field", keyField,
			"gateway_dropped", gwDropped,
			"control_plane_dropped", cpDropped,
		)
	}

	keys := make([]string, 0, len(gwByKey)+len(cpByKey))
	seen := make(map[string]bool, len(gwByKey)+len(cpByKey))
	for k := range gwByKey {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range cpByKey {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	list := &UnifiedEntityList{Entities: make([]UnifiedEntity, 0, len(keys))}

	for _, key := range keys {
		gw, inGW := gwByKey[key]
		cp, inCP := cpByKey[key]

		u := UnifiedEntity{Key: key}

		switch {
		case inGW && inCP:
			u.Source = SourceBoth
			u.Entity = gw
			u.Gateway = gw
			u.ControlPlane = cp
			u.GatewayID, _ = gw.ID()
			u.ControlPlaneID, _ = cp.ID()
			u.HasDrift, u.DriftFields = DetectDrift(gw, cp, opts)

		case inGW:
			u.Source = SourceGateway
			u.Entity = gw
			u.Gateway = gw
			u.GatewayID, _ = gw.ID()

		default:
			u.Source = SourceControlPlane
			u.Entity = cp
			u.ControlPlane = cp
			u.ControlPlaneID, _ = cp.ID()
		}

		list.Entities = append(list.Entities, u)
	}

	return list
}

// indexByKey builds a key → entity index, dropping entries whose key
// field is absent or empty. Returns the index and the dropped count.
func indexByKey(entities []Entity, keyField string) (map[string]Entity, int) {
	byKey := make(map[string]Entity, len(entities))
	dropped := 0

	for _, e := range entities {
		key, ok := e.StringField(keyField)
		if !ok {
			dropped++
			continue
		}
		byKey[key] = e
	}

	return byKey, dropped
}
