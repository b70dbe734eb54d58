package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/qartal/kongsync/internal/errors"
	"github.com/qartal/kongsync/internal/logging"
)

var log = logging.Component("audit")

// maxLineSize bounds one audit record. Entries carry full entity
// snapshots, so the limit is generous.
const maxLineSize = 4 * 1024 * 1024

// =============================================================================
// Store
// =============================================================================

// Store is the append-only audit record store backed by one JSONL file.
//
// A Store is safe for concurrent use: appends serialize on an advisory
// exclusive file lock, reads are lock-free and tolerate in-flight
// records, and the stat counters are atomic.
type Store struct {
	path string

	// scans coalesces concurrent full-store reads: summary listings from
	// parallel callers share one pass over the file.
	scans singleflight.Group

	recordsWritten atomic.Int64
	recordsRead    atomic.Int64
	linesSkipped   atomic.Int64
}

// StoreStats holds cumulative store statistics.
type StoreStats struct {
	RecordsWritten int64
	RecordsRead    int64
	LinesSkipped   int64
}

// NewStore creates a store for the given file path. The file is created
// on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the audit store location under the user's state
// directory: $XDG_STATE_HOME/kongsync/kong_sync_audit.jsonl, falling back
// to ~/.local/state.
func DefaultPath() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			// Last resort: relative to the working directory.
			return filepath.Join("kongsync", "kong_sync_audit.jsonl")
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "kongsync", "kong_sync_audit.jsonl")
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Stats returns a snapshot of the cumulative store statistics.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		RecordsWritten: s.recordsWritten.Load(),
		RecordsRead:    s.recordsRead.Load(),
		LinesSkipped:   s.linesSkipped.Load(),
	}
}

// =============================================================================
// Run Identity
// =============================================================================

// StartSync generates a fresh opaque run identifier. It writes nothing by
// itself; the identifier only reaches the store through Record.
func StartSync(op Operation, dryRun bool) string {
	id := uuid.NewString()
	log.Debug("sync run started", "sync_id", id, "operation", op, "dry_run", dryRun)
	return id
}

// =============================================================================
// Append
// =============================================================================

// Record appends one entry to the store.
//
// The entry is serialized as a single newline-terminated JSON record. An
// advisory exclusive lock is held only for the duration of the write and
// flush, so concurrent writers cannot interleave partial records. A zero
// Timestamp is filled with the current time.
func (s *Store) Record(e Entry) error {
	if e.SyncID == "" {
		return errors.NewMissingField("sync_id")
	}
	if e.EntityName == "" {
		return errors.NewMissingField("entity_name")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("lock audit store: %w", err)
	}
	defer unlock(f)

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	s.recordsWritten.Add(1)
	return nil
}

// =============================================================================
// Reads
// =============================================================================

// ReadAll streams every parsable record in file order.
//
// Unparsable lines (a writer crashed mid-line, or a reader raced an
// in-flight append) are skipped, not fatal: the audit log stays
// best-effort queryable. Concurrent callers share one file pass.
func (s *Store) ReadAll() ([]Entry, error) {
	v, err, _ := s.scans.Do("scan", func() (any, error) {
		return s.readAll()
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

func (s *Store) readAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	defer f.Close()

	var entries []Entry
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		e, ok := parseLine(scanner.Bytes())
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit store: %w", err)
	}

	if skipped > 0 {
		log.Debug("unparsable audit lines skipped", "count", skipped)
	}
	s.recordsRead.Add(int64(len(entries)))
	s.linesSkipped.Add(int64(skipped))

	return entries, nil
}

// parseLine is the single point where a raw store line becomes an Entry.
// Both the "skip torn trailing lines" and "skip foreign garbage" read
// behaviors live here.
func parseLine(line []byte) (Entry, bool) {
	var e Entry
	if len(line) == 0 {
		return e, false
	}
	if err := json.Unmarshal(line, &e); err != nil {
		return e, false
	}
	if e.SyncID == "" || e.EntityName == "" {
		return e, false
	}
	return e, true
}

// ListSyncs groups records into per-run summaries.
//
// Filters apply at the record level before grouping: since keeps records
// at or after the given time, op restricts to one direction (empty means
// both). Summaries are ordered by the run's first record timestamp,
// newest first, and capped at limit (0 means no cap).
func (s *Store) ListSyncs(limit int, since *time.Time, op Operation) ([]Summary, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]Entry)
	var order []string

	for _, e := range entries {
		if since != nil && e.Timestamp.Before(*since) {
			continue
		}
		if op != "" && e.Operation != op {
			continue
		}
		if _, seen := groups[e.SyncID]; !seen {
			order = append(order, e.SyncID)
		}
		groups[e.SyncID] = append(groups[e.SyncID], e)
	}

	summaries := make([]Summary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, Summarize(groups[id]))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// GetSyncDetails returns every record for one run, in file order.
func (s *Store) GetSyncDetails(syncID string) ([]Entry, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if e.SyncID == syncID {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetEntityHistory returns records matching one entity across all runs,
// most recent first, capped at limit (0 means no cap).
func (s *Store) GetEntityHistory(entityType, entityName string, limit int) ([]Entry, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if e.EntityType == entityType && e.EntityName == entityName {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// Compaction (archiver support)
// =============================================================================

// Replace atomically rewrites the store to contain exactly the given
// entries, preserving their order. The advisory lock is held for the
// whole rewrite so no append lands between the snapshot and the rename.
func (s *Store) Replace(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return fmt.Errorf("lock audit store: %w", err)
	}
	defer unlock(f)

	tmp := s.path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}

	w := bufio.NewWriter(out)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("marshal entry: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("write temp store: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush temp store: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp store: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace audit store: %w", err)
	}
	return nil
}
