// Package archive moves closed sync runs out of the live JSONL audit
// store into compressed Parquet files.
//
// The live store stays small and fast to scan; archived runs remain
// queryable through the query service, which reads the Parquet files with
// DuckDB. A run is archived only when its newest record predates the
// cutoff, so in-progress runs are never split across stores.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/logging"
)

var log = logging.Component("archive")

// =============================================================================
// Options
// =============================================================================

// Options configures the archiver.
type Options struct {
	// Dir is the directory archive files are written to.
	Dir string

	// Compression algorithm: "zstd" (default), "snappy", "gzip", "none".
	Compression string
}

// DefaultOptions returns default archive options.
func DefaultOptions(dir string) Options {
	return Options{Dir: dir, Compression: "zstd"}
}

func codec(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "gzip":
		return &parquet.Gzip
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// =============================================================================
// Row layout
// =============================================================================

// Row is one audit entry in Parquet form. Entity snapshots and drift
// fields keep their JSON encoding inside string columns: the schema stays
// flat while the full record remains reconstructible.
type Row struct {
	SyncID      string `parquet:"sync_id,zstd"`
	TimestampMs int64  `parquet:"timestamp_ms"`
	Operation   string `parquet:"operation,zstd"`
	DryRun      bool   `parquet:"dry_run"`
	EntityType  string `parquet:"entity_type,zstd"`
	EntityID    string `parquet:"entity_id,optional,zstd"`
	EntityName  string `parquet:"entity_name,zstd"`
	Action      string `parquet:"action,zstd"`
	Source      string `parquet:"source,zstd"`
	Target      string `parquet:"target,zstd"`
	Status      string `parquet:"status,zstd"`
	Error       string `parquet:"error,optional,zstd"`
	DriftFields string `parquet:"drift_fields,optional,zstd"`
	BeforeState string `parquet:"before_state,optional,zstd"`
	AfterState  string `parquet:"after_state,optional,zstd"`
}

// EntryToRow converts an audit entry to its Parquet row.
func EntryToRow(e audit.Entry) Row {
	return Row{
		SyncID:      e.SyncID,
		TimestampMs: e.Timestamp.UnixMilli(),
		Operation:   string(e.Operation),
		DryRun:      e.DryRun,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		EntityName:  e.EntityName,
		Action:      string(e.Action),
		Source:      e.Source,
		Target:      e.Target,
		Status:      string(e.Status),
		Error:       e.Error,
		DriftFields: strings.Join(e.DriftFields, ","),
		BeforeState: marshalState(e.BeforeState),
		AfterState:  marshalState(e.AfterState),
	}
}

// RowToEntry converts a Parquet row back to an audit entry.
func RowToEntry(r Row) audit.Entry {
	e := audit.Entry{
		SyncID:      r.SyncID,
		Timestamp:   time.UnixMilli(r.TimestampMs).UTC(),
		Operation:   audit.Operation(r.Operation),
		DryRun:      r.DryRun,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		Action:      audit.Action(r.Action),
		Source:      r.Source,
		Target:      r.Target,
		Status:      audit.Status(r.Status),
		Error:       r.Error,
		BeforeState: unmarshalState(r.BeforeState),
		AfterState:  unmarshalState(r.AfterState),
	}
	if r.DriftFields != "" {
		e.DriftFields = strings.Split(r.DriftFields, ",")
	}
	return e
}

func marshalState(r entity.Record) string {
	if r == nil {
		return ""
	}
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalState(s string) entity.Record {
	if s == "" {
		return nil
	}
	var r entity.Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil
	}
	return r
}

// =============================================================================
// Archiver
// =============================================================================

// Result reports one archive pass.
type Result struct {
	RunsArchived    int
	EntriesArchived int
	EntriesKept     int

	// File is the archive written, empty when nothing qualified.
	File string
}

// Archiver moves closed runs from the live store into Parquet archives.
type Archiver struct {
	store *audit.Store
	opts  Options
}

// New creates an archiver for the given store.
func New(store *audit.Store, opts Options) *Archiver {
	if opts.Compression == "" {
		opts.Compression = "zstd"
	}
	return &Archiver{store: store, opts: opts}
}

// Archive moves every run whose newest record predates the cutoff into a
// new Parquet file and compacts the live store down to the remainder.
//
// Archive is meant to run between syncs: a run that appends between the
// snapshot and the compaction could lose records, so callers should not
// archive while a sync is in flight.
func (a *Archiver) Archive(before time.Time) (*Result, error) {
	entries, err := a.store.ReadAll()
	if err != nil {
		return nil, err
	}

	lastSeen := make(map[string]time.Time)
	for _, e := range entries {
		if e.Timestamp.After(lastSeen[e.SyncID]) {
			lastSeen[e.SyncID] = e.Timestamp
		}
	}

	var archived, kept []audit.Entry
	runs := make(map[string]bool)
	for _, e := range entries {
		if lastSeen[e.SyncID].Before(before) {
			archived = append(archived, e)
			runs[e.SyncID] = true
		} else {
			kept = append(kept, e)
		}
	}

	result := &Result{
		RunsArchived:    len(runs),
		EntriesArchived: len(archived),
		EntriesKept:     len(kept),
	}
	if len(archived) == 0 {
		return result, nil
	}

	path, err := a.writeArchive(archived)
	if err != nil {
		return nil, err
	}
	result.File = path

	if err := a.store.Replace(kept); err != nil {
		return nil, fmt.Errorf("compact live store: %w", err)
	}

	log.Info("audit runs archived",
		"runs", result.RunsArchived,
		"entries", result.EntriesArchived,
		"file", result.File,
	)
	return result, nil
}

// writeArchive writes entries to a timestamped Parquet file.
func (a *Archiver) writeArchive(entries []audit.Entry) (string, error) {
	if err := os.MkdirAll(a.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	name := fmt.Sprintf("audit-%s.parquet", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(a.opts.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[Row](f, parquet.Compression(codec(a.opts.Compression)))

	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = EntryToRow(e)
	}

	if _, err := writer.Write(rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write archive rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close archive writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	return path, nil
}
