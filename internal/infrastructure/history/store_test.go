package history

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecords() []domain.RunRecord {
	return []domain.RunRecord{
		{
			ID:        "run-1",
			Timestamp: base.Add(-40 * 24 * time.Hour),
			Goal:      "archive the logs",
			Outcome:   "planned",
			PlanJSON:  `{"execute_commands":["tar czf logs.tgz logs"]}`,
			Executed:  true,
			Success:   true,
		},
		{
			ID:         "run-2",
			Timestamp:  base.Add(-2 * time.Hour),
			Goal:       "download the dataset",
			Outcome:    "failed",
			Stage:      domain.StageValidation,
			Detail:     "missing commands: wget",
			Missing:    []string{"wget"},
			DurationMS: 120,
		},
		{
			ID:        "run-3",
			Timestamp: base.Add(-time.Hour),
			Goal:      "show disk usage",
			Outcome:   "cancelled",
			Detail:    "plan not approved",
		},
	}
}

type storeFactory func(t *testing.T, dir string) ports.RunHistoryRepository

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"sqlite": func(t *testing.T, dir string) ports.RunHistoryRepository {
			s := NewSQLiteStore(filepath.Join(dir, "history.db"))
			require.False(t, s.Degraded())
			s.now = func() time.Time { return base }
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"jsonl": func(t *testing.T, dir string) ports.RunHistoryRepository {
			s := NewFileStore(filepath.Join(dir, "history.jsonl"))
			s.now = func() time.Time { return base }
			return s
		},
	}
}

func TestStoresRoundTripNewestFirst(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, t.TempDir())
			for _, rec := range sampleRecords() {
				require.NoError(t, store.Save(rec))
			}

			got, err := store.Records(0, "")
			require.NoError(t, err)
			require.Len(t, got, 3)

			want := sampleRecords()
			if diff := cmp.Diff([]domain.RunRecord{want[2], want[1], want[0]}, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoresLimitAndSearch(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, t.TempDir())
			for _, rec := range sampleRecords() {
				require.NoError(t, store.Save(rec))
			}

			limited, err := store.Records(1, "")
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, "run-3", limited[0].ID)

			byPlan, err := store.Records(0, "tar czf")
			require.NoError(t, err)
			require.Len(t, byPlan, 1)
			assert.Equal(t, "run-1", byPlan[0].ID)

			byDetail, err := store.Records(0, "wget")
			require.NoError(t, err)
			require.Len(t, byDetail, 1)
			assert.Equal(t, "run-2", byDetail[0].ID)

			none, err := store.Records(0, "kubernetes")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStoresPruneAndClear(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, t.TempDir())
			for _, rec := range sampleRecords() {
				require.NoError(t, store.Save(rec))
			}

			require.NoError(t, store.PruneOlderThan(0))
			all, err := store.Records(0, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, store.PruneOlderThan(30))
			kept, err := store.Records(0, "")
			require.NoError(t, err)
			require.Len(t, kept, 2)
			for _, rec := range kept {
				assert.NotEqual(t, "run-1", rec.ID)
			}

			require.NoError(t, store.Clear())
			empty, err := store.Records(0, "")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStoresExportJSONLines(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store := factory(t, dir)
			for _, rec := range sampleRecords() {
				require.NoError(t, store.Save(rec))
			}

			dest := filepath.Join(dir, "out", "export.jsonl")
			require.NoError(t, store.ExportJSON(dest))

			file, err := os.Open(dest)
			require.NoError(t, err)
			defer file.Close()

			var ids []string
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				var rec domain.RunRecord
				require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, []string{"run-3", "run-2", "run-1"}, ids)
		})
	}
}

func TestSaveStampsMissingTimestamp(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			store := factory(t, t.TempDir())
			require.NoError(t, store.Save(domain.RunRecord{ID: "x", Goal: "g", Outcome: "planned"}))

			got, err := store.Records(0, "")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, got[0].Timestamp.Equal(base))
		})
	}
}

func TestSQLiteSaveReplacesByID(t *testing.T) {
	store := stores()["sqlite"](t, t.TempDir())
	rec := sampleRecords()[1]
	require.NoError(t, store.Save(rec))
	rec.Outcome = "planned"
	require.NoError(t, store.Save(rec))

	got, err := store.Records(0, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "planned", got[0].Outcome)
}

func TestSQLiteStoreFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o600))

	store := NewSQLiteStore(filepath.Join(blocker, "history.db"))
	assert.True(t, store.Degraded())
	assert.Equal(t, filepath.Join(blocker, "history.jsonl"), store.Path())
	assert.NoError(t, store.Close())
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"ok\",\"outcome\":\"planned\"}\nnot json\n"), 0o600))

	got, err := NewFileStore(path).Records(0, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}
