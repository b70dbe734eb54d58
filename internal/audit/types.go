// Package audit implements the append-only sync audit log.
//
// Every entity operation performed (or that would be performed, in a dry
// run) during a synchronization run is appended as one newline-delimited
// JSON record tagged with the run identifier. The store is the one shared
// mutable resource in the reconciliation core:
//
//   - Writers take an advisory exclusive lock for the duration of one
//     append, so concurrent reporters never interleave partial records.
//   - Readers take no lock; any line that fails to parse is skipped, so a
//     reader racing a writer degrades gracefully instead of crashing.
//
// The record layout is stable: consumers read the file as independent
// newline-delimited records with no ordering guarantee beyond append order.
package audit

import (
	"sort"
	"time"

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

// =============================================================================
// Operations, Actions, Statuses
// =============================================================================

// Operation is the sync direction.
type Operation string

const (
	// OperationPush means the gateway is the source of truth.
	OperationPush Operation = "push"

	// OperationPull means the control plane is the source of truth.
	OperationPull Operation = "pull"
)

// ParseOperation validates a direction string, typically user input.
// Empty selects both directions.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case "", OperationPush, OperationPull:
		return op, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidAction, "operation %q is not push or pull", s)
	}
}

// Action is what was done (or would be done) to one entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Status is the recorded outcome of one entity operation.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusWouldCreate Status = "would_create"
	StatusWouldUpdate Status = "would_update"
)

// =============================================================================
// Audit Entry
// =============================================================================

// Entry is one audit record. Entries are append-only: never mutated or
// deleted once written.
type Entry struct {
	// SyncID is the opaque run identifier shared by every entry of a run.
	SyncID string `json:"sync_id"`

	// Timestamp is when the operation was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the run's sync direction.
	Operation Operation `json:"operation"`

	// DryRun is true when the run only previewed changes.
	DryRun bool `json:"dry_run"`

	EntityType string `json:"entity_type"`

	// EntityID is the identifier in the source plane, when known.
	EntityID string `json:"entity_id,omitempty"`

	// EntityName is the human-readable matching key, always present.
	EntityName string `json:"entity_name"`

	Action Action `json:"action"`

	// Source and Target name the planes the operation read from and
	// wrote to.
	Source string `json:"source"`
	Target string `json:"target"`

	Status Status `json:"status"`

	// Error carries the failure message for failed operations.
	Error string `json:"error,omitempty"`

	// DriftFields lists the fields that differed, for update entries.
	DriftFields []string `json:"drift_fields,omitempty"`

	// BeforeState is the full entity snapshot prior to a successful
	// update. Required to roll an update back.
	BeforeState entity.Record `json:"before_state,omitempty"`

	// AfterState is the full entity snapshot after a successful create or
	// update. Required to roll a create back (it carries the
	// target-plane identifier).
	AfterState entity.Record `json:"after_state,omitempty"`
}

// Reversible reports whether this entry carries the state needed to
// construct its inverse operation.
func (e *Entry) Reversible() bool {
	if e.Status != StatusSuccess {
		return false
	}
	switch e.Action {
	case ActionCreate:
		if e.AfterState == nil {
			return false
		}
		_, ok := e.AfterState.ID()
		return ok
	case ActionUpdate:
		if e.BeforeState == nil {
			return false
		}
		if _, ok := e.BeforeState.ID(); ok {
			return true
		}
		if e.AfterState != nil {
			_, ok := e.AfterState.ID()
			return ok
		}
		return false
	default:
		return false
	}
}

// =============================================================================
// Sync Summary
// =============================================================================

// Summary aggregates one run's entries.
type Summary struct {
	SyncID      string    `json:"sync_id"`
	StartedAt   time.Time `json:"started_at"`
	Operation   Operation `json:"operation"`
	DryRun      bool      `json:"dry_run"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Errors      int       `json:"errors"`
	Skipped     int       `json:"skipped"`
	Total       int       `json:"total"`
	EntityTypes []string  `json:"entity_types"`
}

// Summarize derives a Summary from one run's entries in file order.
func Summarize(entries []Entry) Summary {
	s := Summary{}
	types := make(map[string]bool)

	for i, e := range entries {
		if i == 0 {
			s.SyncID = e.SyncID
			s.StartedAt = e.Timestamp
			s.Operation = e.Operation
			s.DryRun = e.DryRun
		}
		s.Total++
		types[e.EntityType] = true

		switch {
		case e.Status == StatusFailed:
			s.Errors++
		case e.Action == ActionCreate:
			s.Created++
		case e.Action == ActionUpdate:
			s.Updated++
		case e.Action == ActionSkip:
			s.Skipped++
		}
	}

	for t := range types {
		s.EntityTypes = append(s.EntityTypes, t)
	}
	sort.Strings(s.EntityTypes)

	return s
}
