package manager

import (
	"context"
	"reflect"
	"testing"

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

type nopManager struct{}

func (nopManager) Create(ctx context.Context, e entity.Record) (entity.Record, error) {
	return e, nil
}
func (nopManager) Update(ctx context.Context, id string, e entity.Record) (entity.Record, error) {
	return e, nil
}
func (nopManager) Delete(ctx context.Context, id string) error { return nil }

func TestParsePlane(t *testing.T) {
	if p, err := ParsePlane("gateway"); err != nil || p != PlaneGateway {
		t.Errorf("gateway: %v %v", p, err)
	}
	if p, err := ParsePlane("control_plane"); err != nil || p != PlaneControlPlane {
		t.Errorf("control_plane: %v %v", p, err)
	}
	if _, err := ParsePlane("sidecar"); !errors.Is(err, errors.ErrUnknownPlane) {
		t.Errorf("sidecar: err = %v", err)
	}
}

func TestPlaneOther(t *testing.T) {
	if PlaneGateway.Other() != PlaneControlPlane {
		t.Error("gateway.Other() != control_plane")
	}
	if PlaneControlPlane.Other() != PlaneGateway {
		t.Error("control_plane.Other() != gateway")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	m := nopManager{}

	r.Register(PlaneGateway, "service", m)
	r.Register(PlaneGateway, "route", m)
	r.Register(PlaneControlPlane, "service", m)

	got, err := r.Get(PlaneGateway, "service")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}

	if _, err := r.Get(PlaneControlPlane, "route"); !errors.Is(err, errors.ErrManagerNotFound) {
		t.Errorf("missing binding: err = %v", err)
	}

	types := r.EntityTypes(PlaneGateway)
	if !reflect.DeepEqual(types, []string{"route", "service"}) {
		t.Errorf("types = %v", types)
	}

	// Re-registering replaces the binding rather than erroring.
	r.Register(PlaneGateway, "service", nopManager{})
	if _, err := r.Get(PlaneGateway, "service"); err != nil {
		t.Errorf("after replace: %v", err)
	}
}
