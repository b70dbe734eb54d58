package unify

import (
	"reflect"
	"testing"
)

func TestMergeEntitiesClassification(t *testing.T) {
	gateway := []Entity{
		{"name": "both-synced", "id": "gw-1", "host": "h"},
		{"name": "both-drifted", "id": "gw-2", "host": "old"},
		{"name": "gw-only", "id": "gw-3"},
	}
	controlPlane := []Entity{
		{"name": "both-synced", "id": "cp-1", "host": "h"},
		{"name": "both-drifted", "id": "cp-2", "host": "new"},
		{"name": "cp-only", "id": "cp-3"},
	}

	list := MergeEntities(gateway, controlPlane, "name", Options{})

	// Keys in ascending lexical order, every input key present once.
	var keys []string
	for _, u := range list.Entities {
		keys = append(keys, u.Key)
	}
	want := []string{"both-drifted", "both-synced", "cp-only", "gw-only"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	byKey := make(map[string]UnifiedEntity)
	for _, u := range list.Entities {
		byKey[u.Key] = u
	}

	if u := byKey["gw-only"]; u.Source != SourceGateway || u.GatewayID != "gw-3" || u.ControlPlaneID != "" {
		t.Errorf("gw-only = %+v", u)
	}
	if u := byKey["cp-only"]; u.Source != SourceControlPlane || u.ControlPlaneID != "cp-3" {
		t.Errorf("cp-only = %+v", u)
	}

	drifted := byKey["both-drifted"]
	if drifted.Source != SourceBoth || !drifted.HasDrift {
		t.Fatalf("both-drifted = %+v", drifted)
	}
	if !reflect.DeepEqual(drifted.DriftFields, []string{"host"}) {
		t.Errorf("drift fields = %v", drifted.DriftFields)
	}
	// Gateway copy is canonical for dual-presence entities.
	if drifted.Entity["host"] != "old" {
		t.Errorf("canonical copy is not the gateway's: %v", drifted.Entity)
	}

	synced := byKey["both-synced"]
	if synced.HasDrift {
		t.Errorf("both-synced drifted: %v", synced.DriftFields)
	}
	if synced.GatewayID != "gw-1" || synced.ControlPlaneID != "cp-1" {
		t.Errorf("ids = %q %q", synced.GatewayID, synced.ControlPlaneID)
	}
}

func TestMergeEntitiesCompleteness(t *testing.T) {
	gateway := []Entity{{"name": "a"}, {"name": "b"}}
	controlPlane := []Entity{{"name": "b"}, {"name": "c"}}

	list := MergeEntities(gateway, controlPlane, "name", Options{})
	if list.Len() != 3 {
		t.Fatalf("len = %d, want 3", list.Len())
	}

	stats := list.Stats()
	if stats.GatewayOnly != 1 || stats.ControlOnly != 1 || stats.InBoth != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMergeEntitiesMissingKeyDropped(t *testing.T) {
	gateway := []Entity{
		{"name": "kept"},
		{"host": "no-name"},
		{"name": ""},
	}

	list := MergeEntities(gateway, nil, "name", Options{})
	if list.Len() != 1 || list.Entities[0].Key != "kept" {
		t.Fatalf("list = %+v", list.Entities)
	}
}

func TestMergeEntitiesDuplicateKeyLastWins(t *testing.T) {
	gateway := []Entity{
		{"name": "svc", "host": "first"},
		{"name": "svc", "host": "second"},
	}

	list := MergeEntities(gateway, nil, "name", Options{})
	if list.Len() != 1 {
		t.Fatalf("len = %d", list.Len())
	}
	if list.Entities[0].Entity["host"] != "second" {
		t.Errorf("kept %v, want last occurrence", list.Entities[0].Entity["host"])
	}
}

func TestMergeEntitiesEmptyInputs(t *testing.T) {
	list := MergeEntities(nil, nil, "name", Options{})
	if list.Len() != 0 {
		t.Errorf("len = %d", list.Len())
	}
}

func TestFilterBySource(t *testing.T) {
	list := MergeEntities(
		[]Entity{{"name": "gw"}, {"name": "shared", "host": "x"}},
		[]Entity{{"name": "cp"}, {"name": "shared", "host": "y"}},
		"name", Options{},
	)

	// Plane filters include dual-presence entities.
	if got := len(list.FilterBySource(SourceGateway)); got != 2 {
		t.Errorf("gateway filter = %d, want 2", got)
	}
	if got := len(list.FilterBySource(SourceControlPlane)); got != 2 {
		t.Errorf("control plane filter = %d, want 2", got)
	}
	// The both filter excludes single-plane entities.
	if got := len(list.FilterBySource(SourceBoth)); got != 1 {
		t.Errorf("both filter = %d, want 1", got)
	}

	if got := len(list.GatewayOnly()); got != 1 {
		t.Errorf("GatewayOnly = %d", got)
	}
	if got := len(list.ControlPlaneOnly()); got != 1 {
		t.Errorf("ControlPlaneOnly = %d", got)
	}
	if got := len(list.WithDrift()); got != 1 {
		t.Errorf("WithDrift = %d", got)
	}
	if got := len(list.FullySynced()); got != 0 {
		t.Errorf("FullySynced = %d", got)
	}
}
