// Package rollback reverses a completed synchronization run using only the
// audit log contents.
//
// The engine derives one inverse operation per reversible audit entry
// (delete what was created, restore the prior state of what was updated)
// and executes them in reverse chronological order, so a later create is
// removed before anything it may have depended on. The live planes are
// consulted only to execute the reversing calls, never to determine what
// happened.
//
// A run with no records for its identifier or one that was a dry run
// cannot be rolled back at all; those cases surface as sentinel errors
// (dry runs modify nothing, so there is nothing to reverse).
package rollback

import (
	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/entity"
)

// =============================================================================
// Actions
// =============================================================================

// ActionKind is the inverse operation derived from an audit entry.
type ActionKind string

const (
	// ActionDelete undoes an original create.
	ActionDelete ActionKind = "delete"

	// ActionRestore undoes an original update by writing back the
	// recorded before-state.
	ActionRestore ActionKind = "restore"
)

// Action is one derived inverse operation. Actions are computed during
// preview and never persisted.
type Action struct {
	EntityType string
	EntityID   string
	EntityName string

	// OriginalAction is what the sync run did.
	OriginalAction audit.Action

	// Kind is the reversing operation.
	Kind ActionKind

	// State carries the entity value needed to execute the action
	// (the before-state for restores; nil for deletes).
	State entity.Record

	// Target is the plane the original write went to; the reversing
	// call goes to the same plane.
	Target string
}

// =============================================================================
// Preview
// =============================================================================

// Preview is the analysis of whether and how a run can be reversed.
type Preview struct {
	SyncID string

	// CanRollback is true iff at least one action was produced.
	CanRollback bool

	// Actions in original audit order. Execution reverses this order.
	Actions []Action

	// Warnings describe entries that could not be made reversible
	// (missing identifiers or snapshots).
	Warnings []string
}

// =============================================================================
// Result
// =============================================================================

// Result reports the outcome of executing a rollback.
type Result struct {
	SyncID string

	// Success is true iff no action failed.
	Success bool

	RolledBack int
	Failed     int
	Skipped    int

	// Errors carries per-action failure messages.
	Errors []string
}
