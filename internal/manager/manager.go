// Package manager defines the per-entity-type manager interface the core
// dispatches plane writes through, and the registry that selects the
// gateway-side or control-plane-side implementation at execution time.
//
// The core never talks to a plane API directly: the sync driver and the
// rollback engine look managers up by (plane, entity type) and invoke
// create/update/delete on whatever the caller registered.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

// =============================================================================
// Planes
// =============================================================================

// Plane names one of the two entity stores.
type Plane string

const (
	PlaneGateway      Plane = "gateway"
	PlaneControlPlane Plane = "control_plane"
)

// ParsePlane validates a plane name from recorded audit data.
func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case PlaneGateway:
		return PlaneGateway, nil
	case PlaneControlPlane:
		return PlaneControlPlane, nil
	default:
		return "", errors.Wrapf(errors.ErrUnknownPlane, "%q", s)
	}
}

// Other returns the opposite plane.
func (p Plane) Other() Plane {
	if p == PlaneGateway {
		return PlaneControlPlane
	}
	return PlaneGateway
}

// =============================================================================
// Entity Manager
// =============================================================================

// EntityManager performs entity operations against one plane for one
// entity type. Implementations live outside the core (HTTP clients,
// fakes in tests).
type EntityManager interface {
	// Create stores a new entity and returns it with the plane-assigned
	// identifier filled in.
	Create(ctx context.Context, e entity.Record) (entity.Record, error)

	// Update replaces the entity with the given identifier.
	Update(ctx context.Context, id string, e entity.Record) (entity.Record, error)

	// Delete removes the entity with the given identifier.
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by managers that can enumerate their entity type.
// The sync command uses it to pull both planes' collections.
type Lister interface {
	List(ctx context.Context) ([]entity.Record, error)
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps (plane, entity type) to a manager.
type Registry struct {
	mu       sync.RWMutex
	managers map[registryKey]EntityManager
}

type registryKey struct {
	plane      Plane
	entityType string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[registryKey]EntityManager)}
}

// Register binds a manager for one plane and entity type, replacing any
// previous binding.
func (r *Registry) Register(plane Plane, entityType string, m EntityManager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[registryKey{plane, entityType}] = m
}

// Get returns the manager for a plane and entity type.
func (r *Registry) Get(plane Plane, entityType string) (EntityManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.managers[registryKey{plane, entityType}]
	if !ok {
		return nil, errors.Wrapf(errors.ErrManagerNotFound,
			"plane %s, entity type %s", plane, entityType)
	}
	return m, nil
}

// EntityTypes returns the entity types registered for a plane, sorted.
func (r *Registry) EntityTypes(plane Plane) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for k := range r.managers {
		if k.plane == plane {
			out = append(out, k.entityType)
		}
	}
	sort.Strings(out)
	return out
}

// String describes the registry contents, for diagnostics.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("registry(%d managers)", len(r.managers))
}
