// Package syncer drives one push or pull reconciliation pass.
//
// The driver walks a unified entity view, performs the required create or
// update through the manager registry, and reports every outcome to the
// sync audit log, including skips and dry-run previews. Entities are
// processed one at a time; cancellation is honored between entities, and
// each entity's operation is independently recorded and independently
// reversible.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/logging"
	"github.com/qartal/kongsync/internal/manager"
	"github.com/qartal/kongsync/internal/unify"
)

// =============================================================================
// Options and Result
// =============================================================================

// Options configures one sync pass.
type Options struct {
	// Operation selects the direction: push makes the gateway the source
	// of truth, pull makes the control plane the source of truth.
	Operation audit.Operation

	// DryRun records what would happen without touching either plane.
	DryRun bool

	// EntityType tags every audit entry and selects the target manager.
	EntityType string

	// SyncID identifies the run. Generated when empty.
	SyncID string
}

// Result summarizes one pass.
type Result struct {
	SyncID   string
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration

	// Errors carries one message per failed entity operation.
	Errors []string
}

// Success is true iff no entity operation failed.
func (r *Result) Success() bool {
	return r.Failed == 0
}

// =============================================================================
// Syncer
// =============================================================================

// Syncer applies unified entity views to a target plane.
type Syncer struct {
	store    *audit.Store
	registry *manager.Registry
}

// New creates a syncer over the given audit store and manager registry.
func New(store *audit.Store, registry *manager.Registry) *Syncer {
	return &Syncer{store: store, registry: registry}
}

// Run performs one pass over the unified view.
//
// For a push, gateway-only entities are created in the control plane and
// drifted dual-presence entities are updated there from the gateway copy;
// a pull mirrors that with the planes swapped. Fully synced entities and
// entities that exist only in the target plane are recorded as skips;
// sync never deletes. Every outcome is appended to the audit log before
// the next entity is considered.
func (s *Syncer) Run(ctx context.Context, list *unify.UnifiedEntityList, opts Options) (*Result, error) {
	if opts.Operation != audit.OperationPush && opts.Operation != audit.OperationPull {
		return nil, fmt.Errorf("operation must be push or pull, got %q", opts.Operation)
	}
	if opts.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}

	syncID := opts.SyncID
	if syncID == "" {
		syncID = audit.StartSync(opts.Operation, opts.DryRun)
	}

	// The run identity rides the context so every log line below, down
	// through the managers, carries sync_id and entity_type.
	ctx = logging.ContextWithSyncID(ctx, syncID)
	ctx = logging.ContextWithEntityType(ctx, opts.EntityType)
	log := logging.WithContext(ctx).With("component", "syncer")

	sourcePlane, targetPlane := planes(opts.Operation)
	result := &Result{SyncID: syncID}
	start := time.Now()

	log.Info("sync pass started",
		"operation", opts.Operation,
		"dry_run", opts.DryRun,
		"entities", list.Len(),
	)

	for _, u := range list.Entities {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.syncOne(ctx, u, syncID, sourcePlane, targetPlane, opts, result)
	}

	result.Duration = time.Since(start)

	log.Info("sync pass completed",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	return result, nil
}

// syncOne reconciles a single unified entity and records the outcome.
func (s *Syncer) syncOne(
	ctx context.Context,
	u unify.UnifiedEntity,
	syncID string,
	sourcePlane, targetPlane manager.Plane,
	opts Options,
	result *Result,
) {
	entry := audit.Entry{
		SyncID:     syncID,
		Operation:  opts.Operation,
		DryRun:     opts.DryRun,
		EntityType: opts.EntityType,
		EntityName: u.Key,
		Source:     string(sourcePlane),
		Target:     string(targetPlane),
	}
	entry.EntityID = planeID(u, sourcePlane)

	switch {
	case u.Source == unify.Source(sourcePlane):
		s.create(ctx, u, &entry, sourcePlane, opts, result)

	case u.Source == unify.SourceBoth && u.HasDrift:
		s.update(ctx, u, &entry, sourcePlane, targetPlane, opts, result)

	default:
		// Fully synced, or present only in the target plane. Sync never
		// deletes; the entity is recorded as untouched.
		entry.Action = audit.ActionSkip
		entry.Status = audit.StatusSuccess
		result.Skipped++
	}

	s.record(ctx, entry)
}

// create pushes a source-only entity into the target plane.
func (s *Syncer) create(
	ctx context.Context,
	u unify.UnifiedEntity,
	entry *audit.Entry,
	sourcePlane manager.Plane,
	opts Options,
	result *Result,
) {
	entry.Action = audit.ActionCreate

	if opts.DryRun {
		entry.Status = audit.StatusWouldCreate
		result.Created++
		return
	}

	mgr, err := s.registry.Get(sourcePlane.Other(), opts.EntityType)
	if err != nil {
		s.fail(entry, err, result)
		return
	}

	created, err := mgr.Create(ctx, sanitize(planeCopy(u, sourcePlane)))
	if err != nil {
		s.fail(entry, err, result)
		return
	}

	entry.Status = audit.StatusSuccess
	entry.AfterState = created
	result.Created++
}

// update overwrites the target plane's copy with the source plane's values.
func (s *Syncer) update(
	ctx context.Context,
	u unify.UnifiedEntity,
	entry *audit.Entry,
	sourcePlane, targetPlane manager.Plane,
	opts Options,
	result *Result,
) {
	entry.Action = audit.ActionUpdate
	entry.DriftFields = u.DriftFields

	target := planeCopy(u, targetPlane)
	targetID, ok := target.ID()
	if !ok {
		s.fail(entry, fmt.Errorf("target copy of %q has no identifier", u.Key), result)
		return
	}

	if opts.DryRun {
		entry.Status = audit.StatusWouldUpdate
		result.Updated++
		return
	}

	mgr, err := s.registry.Get(targetPlane, opts.EntityType)
	if err != nil {
		s.fail(entry, err, result)
		return
	}

	updated, err := mgr.Update(ctx, targetID, sanitize(planeCopy(u, sourcePlane)))
	if err != nil {
		s.fail(entry, err, result)
		return
	}

	entry.Status = audit.StatusSuccess
	entry.BeforeState = target.Clone()
	entry.AfterState = updated
	result.Updated++
}

func (s *Syncer) fail(entry *audit.Entry, err error, result *Result) {
	entry.Status = audit.StatusFailed
	entry.Error = err.Error()
	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s %q: %v", entry.Action, entry.EntityName, err))
}

// record appends the entry; audit failures are surfaced in the log but do
// not abort the pass, since the plane operation already happened.
func (s *Syncer) record(ctx context.Context, entry audit.Entry) {
	if err := s.store.Record(entry); err != nil {
		logging.WithContext(ctx).Error("audit record failed",
			"component", "syncer",
			"entity_name", entry.EntityName,
			"error", err,
		)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// planes returns (source, target) for a direction.
func planes(op audit.Operation) (manager.Plane, manager.Plane) {
	if op == audit.OperationPush {
		return manager.PlaneGateway, manager.PlaneControlPlane
	}
	return manager.PlaneControlPlane, manager.PlaneGateway
}

// planeCopy returns the unified entity's copy from one plane.
func planeCopy(u unify.UnifiedEntity, plane manager.Plane) entity.Record {
	if plane == manager.PlaneGateway {
		return u.Gateway
	}
	return u.ControlPlane
}

// planeID returns the identifier the entity has in one plane, if any.
func planeID(u unify.UnifiedEntity, plane manager.Plane) string {
	if plane == manager.PlaneGateway {
		return u.GatewayID
	}
	return u.ControlPlaneID
}

// sanitize strips plane-assigned metadata before writing to the other
// plane; identifiers and timestamps are never carried across.
func sanitize(e entity.Record) entity.Record {
	out := e.Clone()
	for _, field := range entity.MetadataFields {
		delete(out, field)
	}
	return out
}
