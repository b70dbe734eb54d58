package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qartal/kongsync/internal/audit"
	"github.com/qartal/kongsync/internal/entity"
)

func archiveEntry(syncID, name string, at time.Time) audit.Entry {
	return audit.Entry{
		SyncID:      syncID,
		Timestamp:   at,
		Operation:   audit.OperationPush,
		EntityType:  "service",
		EntityName:  name,
		Action:      audit.ActionUpdate,
		Source:      "gateway",
		Target:      "control_plane",
		Status:      audit.StatusSuccess,
		DriftFields: []string{"host", "retries"},
		BeforeState: entity.Record{"id": "s1", "host": "old"},
		AfterState:  entity.Record{"id": "s1", "host": "new"},
	}
}

func TestRowRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e := archiveEntry("run-1", "api-svc", at)

	got := RowToEntry(EntryToRow(e))

	assert.Equal(t, e.SyncID, got.SyncID)
	assert.True(t, got.Timestamp.Equal(at))
	assert.Equal(t, e.Operation, got.Operation)
	assert.Equal(t, e.EntityType, got.EntityType)
	assert.Equal(t, e.EntityName, got.EntityName)
	assert.Equal(t, e.Action, got.Action)
	assert.Equal(t, e.Status, got.Status)
	assert.Equal(t, e.DriftFields, got.DriftFields)
	assert.Equal(t, "old", got.BeforeState["host"])
	assert.Equal(t, "new", got.AfterState["host"])
}

func TestRowRoundTripEmptyOptionals(t *testing.T) {
	e := audit.Entry{
		SyncID:     "run-1",
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		Operation:  audit.OperationPull,
		EntityType: "route",
		EntityName: "rt",
		Action:     audit.ActionSkip,
		Status:     audit.StatusSuccess,
	}

	got := RowToEntry(EntryToRow(e))

	assert.Nil(t, got.DriftFields)
	assert.Nil(t, got.BeforeState)
	assert.Nil(t, got.AfterState)
	assert.Empty(t, got.EntityID)
	assert.Empty(t, got.Error)
}

func TestArchiveMovesClosedRuns(t *testing.T) {
	dir := t.TempDir()
	store := audit.NewStore(filepath.Join(dir, "audit.jsonl"))
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// An old run, fully before the cutoff.
	require.NoError(t, store.Record(archiveEntry("run-old", "a", now.Add(-48*time.Hour))))
	require.NoError(t, store.Record(archiveEntry("run-old", "b", now.Add(-47*time.Hour))))

	// A run that started early but has a recent record stays live.
	require.NoError(t, store.Record(archiveEntry("run-straddle", "c", now.Add(-48*time.Hour))))
	require.NoError(t, store.Record(archiveEntry("run-straddle", "d", now.Add(-time.Hour))))

	// A fully recent run.
	require.NoError(t, store.Record(archiveEntry("run-new", "e", now.Add(-time.Minute))))

	archiver := New(store, DefaultOptions(filepath.Join(dir, "archive")))
	result, err := archiver.Archive(now.Add(-24 * time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, result.RunsArchived)
	assert.Equal(t, 2, result.EntriesArchived)
	assert.Equal(t, 3, result.EntriesKept)
	require.NotEmpty(t, result.File)

	// The live store now holds only the kept runs.
	live, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, live, 3)
	for _, e := range live {
		assert.NotEqual(t, "run-old", e.SyncID)
	}

	// The archive file round-trips the moved entries.
	rows, err := parquet.ReadFile[Row](result.File)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := RowToEntry(rows[0])
	assert.Equal(t, "run-old", first.SyncID)
	assert.Equal(t, "a", first.EntityName)
	assert.Equal(t, "old", first.BeforeState["host"])
}

func TestArchiveNothingToDo(t *testing.T) {
	dir := t.TempDir()
	store := audit.NewStore(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, store.Record(archiveEntry("run-new", "a", time.Now().UTC())))

	archiver := New(store, DefaultOptions(filepath.Join(dir, "archive")))
	result, err := archiver.Archive(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)

	assert.Zero(t, result.RunsArchived)
	assert.Empty(t, result.File)

	// No archive directory or file is created for an empty pass.
	_, statErr := os.Stat(filepath.Join(dir, "archive"))
	assert.True(t, os.IsNotExist(statErr))

	live, err := store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestArchiveEmptyStore(t *testing.T) {
	dir := t.TempDir()
	store := audit.NewStore(filepath.Join(dir, "audit.jsonl"))

	archiver := New(store, DefaultOptions(filepath.Join(dir, "archive")))
	result, err := archiver.Archive(time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.EntriesArchived)
	assert.Zero(t, result.EntriesKept)
}
