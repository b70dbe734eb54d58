// Package query answers history questions across archived audit runs.
//
// The service points DuckDB at the Parquet files the archiver writes and
// combines their rows with the live JSONL store, so entity histories and
// run listings span both the hot and the archived record.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/audit/archive"
)

// Service provides query capabilities over archived audit data. It is
// safe for concurrent use: the database handle pools its own
// connections and the stat counters are atomic.
type Service struct {
	db    *sql.DB
	dir   string
	store *audit.Store

	queriesExecuted atomic.Int64
	rowsReturned    atomic.Int64
	queryErrors     atomic.Int64
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// New creates a query service over the given archive directory. The store
// is optional; when set, live entries are merged into every result.
func New(archiveDir string, store *audit.Store) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Service{
		db:    db,
		dir:   archiveDir,
		store: store,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// glob returns the Parquet file pattern for the archive directory.
func (s *Service) glob() string {
	return filepath.Join(s.dir, "*.parquet")
}

const entryColumns = `
	sync_id, timestamp_ms, operation, dry_run,
	entity_type, entity_id, entity_name,
	action, source, target, status, error,
	drift_fields, before_state, after_state
`

// scanEntries scans archived rows back into audit entries.
func (s *Service) scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var r archive.Row
		var entityID, errMsg, drift, before, after sql.NullString

		err := rows.Scan(
			&r.SyncID, &r.TimestampMs, &r.Operation, &r.DryRun,
			&r.EntityType, &entityID, &r.EntityName,
			&r.Action, &r.Source, &r.Target, &r.Status, &errMsg,
			&drift, &before, &after,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.EntityID = entityID.String
		r.Error = errMsg.String
		r.DriftFields = drift.String
		r.BeforeState = before.String
		r.AfterState = after.String

		entries = append(entries, archive.RowToEntry(r))
	}

	return entries, rows.Err()
}

// EntityHistory returns archived and live entries for one entity, newest
// first, across every recorded run.
func (s *Service) EntityHistory(ctx context.Context, entityType, entityName string, limit int) ([]audit.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM read_parquet($1)
		WHERE entity_type = $2
		  AND entity_name = $3
		ORDER BY timestamp_ms DESC
	`

	entries, err := s.queryEntries(ctx, query, s.glob(), entityType, entityName)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		live, err := s.store.GetEntityHistory(entityType, entityName, 0)
		if err != nil {
			return nil, err
		}
		entries = append(live, entries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// RunEntries returns every archived and live entry for one run, in
// recorded order.
func (s *Service) RunEntries(ctx context.Context, syncID string) ([]audit.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM read_parquet($1)
		WHERE sync_id = $2
		ORDER BY timestamp_ms
	`

	entries, err := s.queryEntries(ctx, query, s.glob(), syncID)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		live, err := s.store.GetSyncDetails(syncID)
		if err == nil {
			entries = append(entries, live...)
		}
	}
	return entries, nil
}

// RunSummaries returns per-run summaries over the archive, newest first.
// Counting happens in Go so archived and live runs summarize identically.
func (s *Service) RunSummaries(ctx context.Context, limit int) ([]audit.Summary, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM read_parquet($1)
		ORDER BY timestamp_ms
	`

	entries, err := s.queryEntries(ctx, query, s.glob())
	if err != nil {
		return nil, err
	}

	byRun := make(map[string][]audit.Entry)
	var order []string
	for _, e := range entries {
		if _, seen := byRun[e.SyncID]; !seen {
			order = append(order, e.SyncID)
		}
		byRun[e.SyncID] = append(byRun[e.SyncID], e)
	}

	summaries := make([]audit.Summary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, audit.Summarize(byRun[id]))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// queryEntries runs one archive query. A missing archive directory or an
// empty one is not an error: the live store is the whole record. Any
// failure against existing archive files is surfaced.
func (s *Service) queryEntries(ctx context.Context, query string, args ...any) ([]audit.Entry, error) {
	matches, _ := filepath.Glob(s.glob())
	if len(matches) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.queryErrors.Add(1)
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	entries, err := s.scanEntries(rows)
	if err != nil {
		s.queryErrors.Add(1)
		return nil, err
	}

	s.queriesExecuted.Add(1)
	s.rowsReturned.Add(int64(len(entries)))
	return entries, nil
}

// ServiceStats returns a snapshot of the query statistics.
func (s *Service) ServiceStats() Stats {
	return Stats{
		QueriesExecuted: s.queriesExecuted.Load(),
		RowsReturned:    s.rowsReturned.Load(),
		Errors:          s.queryErrors.Load(),
	}
}
