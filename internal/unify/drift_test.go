package unify

import (
	"reflect"
	"testing"
)

func TestDetectDriftBasic(t *testing.T) {
	a := Entity{"name": "svc", "host": "a.internal", "port": float64(80)}
	b := Entity{"name": "svc", "host": "b.internal", "port": float64(80)}

	has, fields := DetectDrift(a, b, Options{})
	if !has {
		t.Fatal("expected drift")
	}
	if !reflect.DeepEqual(fields, []string{"host"}) {
		t.Errorf("fields = %v", fields)
	}
}

func TestDetectDriftSymmetric(t *testing.T) {
	a := Entity{"name": "svc", "host": "a", "retries": float64(5)}
	b := Entity{"name": "svc", "host": "b", "tags": []any{"x"}}

	hasAB, fieldsAB := DetectDrift(a, b, Options{})
	hasBA, fieldsBA := DetectDrift(b, a, Options{})

	if hasAB != hasBA {
		t.Fatalf("asymmetric result: %v vs %v", hasAB, hasBA)
	}

	setAB := make(map[string]bool)
	for _, f := range fieldsAB {
		setAB[f] = true
	}
	setBA := make(map[string]bool)
	for _, f := range fieldsBA {
		setBA[f] = true
	}
	if !reflect.DeepEqual(setAB, setBA) {
		t.Errorf("field sets differ: %v vs %v", fieldsAB, fieldsBA)
	}
}

func TestDetectDriftMetadataExcluded(t *testing.T) {
	a := Entity{"name": "svc", "id": "aaa", "created_at": float64(1), "updated_at": float64(2)}
	b := Entity{"name": "svc", "id": "bbb", "created_at": float64(3), "updated_at": float64(4)}

	if has, fields := DetectDrift(a, b, Options{}); has {
		t.Errorf("metadata-only differences reported as drift: %v", fields)
	}
}

func TestDetectDriftExclusionMatchesNestedSegment(t *testing.T) {
	a := Entity{"name": "svc", "meta": map[string]any{"updated_at": float64(1)}}
	b := Entity{"name": "svc", "meta": map[string]any{"updated_at": float64(2)}}

	if has, fields := DetectDrift(a, b, Options{}); has {
		t.Errorf("nested metadata reported as drift: %v", fields)
	}
}

func TestDetectDriftCustomExclusions(t *testing.T) {
	a := Entity{"name": "svc", "revision": float64(1), "id": "x"}
	b := Entity{"name": "svc", "revision": float64(2), "id": "y"}

	// Explicit exclusions replace the defaults, so id now drifts.
	has, fields := DetectDrift(a, b, Options{ExcludeFields: []string{"revision"}})
	if !has {
		t.Fatal("expected drift on id")
	}
	if !reflect.DeepEqual(fields, []string{"id"}) {
		t.Errorf("fields = %v", fields)
	}
}

func TestDetectDriftCompareFields(t *testing.T) {
	a := Entity{"name": "svc", "host": "a", "config": map[string]any{"timeout": float64(1)}}
	b := Entity{"name": "svc", "host": "b", "config": map[string]any{"timeout": float64(2)}}

	// Exact path.
	has, fields := DetectDrift(a, b, Options{CompareFields: []string{"host"}})
	if !has || !reflect.DeepEqual(fields, []string{"host"}) {
		t.Errorf("host filter: %v %v", has, fields)
	}

	// Prefix selects nested leaves.
	has, fields = DetectDrift(a, b, Options{CompareFields: []string{"config"}})
	if !has || !reflect.DeepEqual(fields, []string{"config.timeout"}) {
		t.Errorf("config filter: %v %v", has, fields)
	}

	// Filter naming an unchanged field finds nothing.
	if has, _ := DetectDrift(a, b, Options{CompareFields: []string{"name"}}); has {
		t.Error("name filter reported drift")
	}
}

func TestDetectDriftEmptyEqualsAbsent(t *testing.T) {
	a := Entity{"name": "svc", "tags": []any{}, "path": ""}
	b := Entity{"name": "svc"}

	if has, fields := DetectDrift(a, b, Options{}); has {
		t.Errorf("empty vs absent reported as drift: %v", fields)
	}
}

func TestDetectDriftArrayWholeValue(t *testing.T) {
	a := Entity{"name": "svc", "tags": []any{"a", "b"}}
	b := Entity{"name": "svc", "tags": []any{"a", "c"}}

	has, fields := DetectDrift(a, b, Options{})
	if !has {
		t.Fatal("expected drift")
	}
	if !reflect.DeepEqual(fields, []string{"tags"}) {
		t.Errorf("array drift reported per element: %v", fields)
	}
}

func TestDetectDriftNilInputs(t *testing.T) {
	e := Entity{"name": "svc"}

	for _, pair := range [][2]Entity{{nil, e}, {e, nil}, {nil, nil}} {
		has, fields := DetectDrift(pair[0], pair[1], Options{})
		if has || fields != nil {
			t.Errorf("nil input produced drift: %v %v", has, fields)
		}
	}
}
