package rollback

import (
	"context"
	"fmt"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/errors"
	"github.com/qartal/kongsync/internal/logging"
	"github.com/qartal/kongsync/internal/manager"
)

// =============================================================================
// Engine
// =============================================================================

// Engine derives and executes inverse operations for recorded runs.
type Engine struct {
	store    *audit.Store
	registry *manager.Registry
}

// NewEngine creates a rollback engine over the given audit store and
// manager registry.
func NewEngine(store *audit.Store, registry *manager.Registry) *Engine {
	return &Engine{store: store, registry: registry}
}

// =============================================================================
// Preview
// =============================================================================

// Preview loads a run's entries and derives the reversing actions.
//
// Only entries with status success and action create or update are
// considered: skips are never reversible and never need reversal, and
// failed operations changed nothing. entityTypes, when non-empty,
// restricts the preview to those types. An entry lacking the state needed
// to reverse it produces a warning instead of an action.
//
// An unknown run yields ErrRunNotFound; a dry run yields ErrDryRunSource.
func (e *Engine) Preview(syncID string, entityTypes []string) (*Preview, error) {
	entries, err := e.store.GetSyncDetails(syncID)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, errors.Wrapf(errors.ErrRunNotFound, "sync %s", syncID)
	}
	if entries[0].DryRun {
		return nil, errors.Wrapf(errors.ErrDryRunSource, "sync %s", syncID)
	}

	p := &Preview{SyncID: syncID}

	typeFilter := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		typeFilter[t] = true
	}

	for _, entry := range entries {
		if entry.Status != audit.StatusSuccess {
			continue
		}
		if entry.Action != audit.ActionCreate && entry.Action != audit.ActionUpdate {
			continue
		}
		if len(typeFilter) > 0 && !typeFilter[entry.EntityType] {
			continue
		}

		action, warning := deriveAction(entry)
		if warning != "" {
			p.Warnings = append(p.Warnings, warning)
			continue
		}
		p.Actions = append(p.Actions, action)
	}

	p.CanRollback = len(p.Actions) > 0
	return p, nil
}

// deriveAction builds the inverse operation for one reversible entry.
// Returns a non-empty warning when the entry lacks the state to reverse it.
func deriveAction(entry audit.Entry) (Action, string) {
	action := Action{
		EntityType:     entry.EntityType,
		EntityName:     entry.EntityName,
		OriginalAction: entry.Action,
		Target:         entry.Target,
	}

	switch entry.Action {
	case audit.ActionCreate:
		// Undo a create by deleting the entity the target plane assigned.
		if entry.AfterState == nil {
			return action, fmt.Sprintf(
				"%s %q: created without an after-state snapshot, cannot delete", entry.EntityType, entry.EntityName)
		}
		id, ok := entry.AfterState.ID()
		if !ok {
			return action, fmt.Sprintf(
				"%s %q: after-state carries no identifier, cannot delete", entry.EntityType, entry.EntityName)
		}
		action.Kind = ActionDelete
		action.EntityID = id
		return action, ""

	case audit.ActionUpdate:
		// Undo an update by restoring the recorded before-state.
		if entry.BeforeState == nil {
			return action, fmt.Sprintf(
				"%s %q: updated without a before-state snapshot, cannot restore", entry.EntityType, entry.EntityName)
		}
		id, ok := entry.BeforeState.ID()
		if !ok && entry.AfterState != nil {
			id, ok = entry.AfterState.ID()
		}
		if !ok {
			return action, fmt.Sprintf(
				"%s %q: neither snapshot carries an identifier, cannot restore", entry.EntityType, entry.EntityName)
		}
		action.Kind = ActionRestore
		action.EntityID = id
		action.State = entry.BeforeState
		return action, ""

	default:
		return action, fmt.Sprintf("%s %q: action %s is not reversible",
			entry.EntityType, entry.EntityName, entry.Action)
	}
}

// =============================================================================
// Execution
// =============================================================================

// Rollback executes the reversing actions for a run.
//
// Actions run strictly sequentially in reverse chronological order: the
// last original operation is undone first, so dependent creates are
// removed before the entities they referenced. On the first failure the
// engine stops, unless force is set, in which case the error is recorded
// and the remaining actions still run. Cancellation is checked between actions.
//
// A run whose preview produces no actions yields ErrNotReversible.
func (e *Engine) Rollback(ctx context.Context, syncID string, entityTypes []string, force bool) (*Result, error) {
	preview, err := e.Preview(syncID, entityTypes)
	if err != nil {
		return nil, err
	}
	if !preview.CanRollback {
		return nil, errors.Wrapf(errors.ErrNotReversible, "sync %s produced no reversible operations", syncID)
	}

	log := logging.With("component", "rollback", "sync_id", syncID)
	result := &Result{SyncID: syncID}
	halted := false
	for i := len(preview.Actions) - 1; i >= 0; i-- {
		action := preview.Actions[i]

		if halted {
			result.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Skipped++
			halted = true
			result.Errors = append(result.Errors, fmt.Sprintf("cancelled: %v", err))
			continue
		}

		if err := e.execute(ctx, action); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s %s %q: %v", action.Kind, action.EntityType, action.EntityName, err))
			log.Error("rollback action failed",
				"kind", action.Kind,
				"entity_type", action.EntityType,
				"entity_name", action.EntityName,
				"error", err,
			)
			if !force {
				halted = true
			}
			continue
		}

		result.RolledBack++
		log.Info("rollback action applied",
			"kind", action.Kind,
			"entity_type", action.EntityType,
			"entity_name", action.EntityName,
			"target", action.Target,
		)
	}

	result.Success = result.Failed == 0
	return result, nil
}

// execute dispatches one action to the plane the original write went to.
func (e *Engine) execute(ctx context.Context, action Action) error {
	plane, err := manager.ParsePlane(action.Target)
	if err != nil {
		return err
	}

	mgr, err := e.registry.Get(plane, action.EntityType)
	if err != nil {
		return err
	}

	switch action.Kind {
	case ActionDelete:
		return mgr.Delete(ctx, action.EntityID)
	case ActionRestore:
		_, err := mgr.Update(ctx, action.EntityID, action.State)
		return err
	default:
		return errors.Wrapf(errors.ErrInvalidAction, "rollback action %q", action.Kind)
	}
}
