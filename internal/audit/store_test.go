package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/qartal/kongsync/internal/entity"
	"github.com/qartal/kongsync/internal/errors"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "audit.jsonl"))
}

func testEntry(syncID, name string) Entry {
	return Entry{
		SyncID:     syncID,
		Operation:  OperationPush,
		EntityType: "service",
		EntityName: name,
		Action:     ActionCreate,
		Source:     "gateway",
		Target:     "control_plane",
		Status:     StatusSuccess,
	}
}

func TestRecordAndReadAll(t *testing.T) {
	store := testStore(t)
	id := StartSync(OperationPush, false)

	for i := 0; i < 5; i++ {
		e := testEntry(id, fmt.Sprintf("svc-%d", i))
		require.NoError(t, store.Record(e))
	}

	entries, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 5)

	// File order is append order.
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("svc-%d", i), e.EntityName)
		assert.Equal(t, id, e.SyncID)
		assert.False(t, e.Timestamp.IsZero(), "timestamp should be filled")
	}
}

func TestRecordValidatesRequiredFields(t *testing.T) {
	store := testStore(t)

	err := store.Record(Entry{EntityName: "svc"})
	require.ErrorIs(t, err, errors.ErrMissingField)

	err = store.Record(Entry{SyncID: "run-1"})
	require.ErrorIs(t, err, errors.ErrMissingField)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr), "invalid entries must not create the file")
}

func TestRecordPreservesStates(t *testing.T) {
	store := testStore(t)

	e := testEntry("run-1", "svc")
	e.Action = ActionUpdate
	e.DriftFields = []string{"host", "config.timeout"}
	e.BeforeState = entity.Record{"id": "abc", "host": "old"}
	e.AfterState = entity.Record{"id": "abc", "host": "new"}
	require.NoError(t, store.Record(e))

	entries, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, []string{"host", "config.timeout"}, got.DriftFields)
	assert.Equal(t, "old", got.BeforeState["host"])
	assert.Equal(t, "new", got.AfterState["host"])
}

func TestReadAllSkipsCorruptLines(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Record(testEntry("run-1", "first")))

	// Simulate a torn write and foreign garbage between valid records.
	f, err := os.OpenFile(store.Path(), os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{\"sync_id\":\"run-1\",\"entity_na\nnot json at all\n{}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Record(testEntry("run-1", "second")))

	entries, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].EntityName)
	assert.Equal(t, "second", entries[1].EntityName)
	assert.GreaterOrEqual(t, store.Stats().LinesSkipped, int64(3))
}

func TestReadAllMissingFile(t *testing.T) {
	store := testStore(t)
	entries, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentAppends(t *testing.T) {
	store := testStore(t)
	const writers = 8
	const perWriter = 25

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			s := NewStore(store.Path())
			for i := 0; i < perWriter; i++ {
				e := testEntry(fmt.Sprintf("run-%d", w), fmt.Sprintf("svc-%d-%d", w, i))
				if err := s.Record(e); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Every record must land intact: no interleaved or torn lines.
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, writers*perWriter)

	entries, err := store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, writers*perWriter)
	assert.EqualValues(t, 0, store.Stats().LinesSkipped)
}

func TestConcurrentRecordsOnSharedStore(t *testing.T) {
	store := testStore(t)
	const writers = 8
	const perWriter = 25

	// All goroutines share one Store value, the way a sync pass's entity
	// reporters do. Readers poll Stats while writes are in flight.
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				e := testEntry(fmt.Sprintf("run-%d", w), fmt.Sprintf("svc-%d-%d", w, i))
				if err := store.Record(e); err != nil {
					return err
				}
				_ = store.Stats()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	entries, err := store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, writers*perWriter)
	assert.EqualValues(t, writers*perWriter, store.Stats().RecordsWritten)
	assert.EqualValues(t, 0, store.Stats().LinesSkipped)
}

func TestListSyncs(t *testing.T) {
	store := testStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	record := func(syncID string, op Operation, at time.Time, action Action, status Status) {
		e := testEntry(syncID, "svc-"+syncID)
		e.Operation = op
		e.Timestamp = at
		e.Action = action
		e.Status = status
		require.NoError(t, store.Record(e))
	}

	record("run-old", OperationPush, base, ActionCreate, StatusSuccess)
	record("run-old", OperationPush, base.Add(time.Second), ActionUpdate, StatusSuccess)
	record("run-mid", OperationPull, base.Add(time.Hour), ActionCreate, StatusFailed)
	record("run-new", OperationPush, base.Add(2*time.Hour), ActionSkip, StatusSuccess)

	summaries, err := store.ListSyncs(0, nil, "")
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// Newest first.
	assert.Equal(t, "run-new", summaries[0].SyncID)
	assert.Equal(t, "run-mid", summaries[1].SyncID)
	assert.Equal(t, "run-old", summaries[2].SyncID)

	old := summaries[2]
	assert.Equal(t, 1, old.Created)
	assert.Equal(t, 1, old.Updated)
	assert.Equal(t, 2, old.Total)
	assert.Equal(t, []string{"service"}, old.EntityTypes)

	// Failed entries count as errors, not by their action.
	assert.Equal(t, 1, summaries[1].Errors)
	assert.Equal(t, 0, summaries[1].Created)

	// Operation filter.
	summaries, err = store.ListSyncs(0, nil, OperationPull)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "run-mid", summaries[0].SyncID)

	// Since filter drops older records.
	since := base.Add(30 * time.Minute)
	summaries, err = store.ListSyncs(0, &since, "")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Limit caps after ordering.
	summaries, err = store.ListSyncs(1, nil, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "run-new", summaries[0].SyncID)
}

func TestGetSyncDetails(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Record(testEntry("run-a", "one")))
	require.NoError(t, store.Record(testEntry("run-b", "other")))
	require.NoError(t, store.Record(testEntry("run-a", "two")))

	entries, err := store.GetSyncDetails("run-a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].EntityName)
	assert.Equal(t, "two", entries[1].EntityName)

	entries, err = store.GetSyncDetails("run-missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetEntityHistory(t *testing.T) {
	store := testStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := testEntry(fmt.Sprintf("run-%d", i), "api-svc")
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Record(e))
	}
	other := testEntry("run-x", "api-svc")
	other.EntityType = "route"
	other.Timestamp = base.Add(5 * time.Hour)
	require.NoError(t, store.Record(other))

	history, err := store.GetEntityHistory("service", "api-svc", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Most recent first; the route with the same name is excluded.
	assert.Equal(t, "run-2", history[0].SyncID)
	assert.Equal(t, "run-0", history[2].SyncID)

	history, err = store.GetEntityHistory("service", "api-svc", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestReplace(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Record(testEntry("run-a", "keep")))
	require.NoError(t, store.Record(testEntry("run-b", "drop")))

	entries, err := store.ReadAll()
	require.NoError(t, err)

	var kept []Entry
	for _, e := range entries {
		if e.SyncID == "run-a" {
			kept = append(kept, e)
		}
	}
	require.NoError(t, store.Replace(kept))

	after, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "keep", after[0].EntityName)

	// Appends keep working after a rewrite.
	require.NoError(t, store.Record(testEntry("run-c", "new")))
	after, err = store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestReversible(t *testing.T) {
	create := testEntry("run", "svc")
	create.AfterState = entity.Record{"id": "x"}
	assert.True(t, create.Reversible())

	create.AfterState = nil
	assert.False(t, create.Reversible())

	update := testEntry("run", "svc")
	update.Action = ActionUpdate
	update.BeforeState = entity.Record{"id": "x"}
	assert.True(t, update.Reversible())

	// Identifier may come from the after-state instead.
	update.BeforeState = entity.Record{"host": "h"}
	update.AfterState = entity.Record{"id": "y"}
	assert.True(t, update.Reversible())

	update.AfterState = nil
	assert.False(t, update.Reversible())

	skip := testEntry("run", "svc")
	skip.Action = ActionSkip
	assert.False(t, skip.Reversible())

	failed := testEntry("run", "svc")
	failed.Status = StatusFailed
	failed.AfterState = entity.Record{"id": "x"}
	assert.False(t, failed.Reversible())
}
