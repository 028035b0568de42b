package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// buildReport assembles App -> Core plus a Core_Test module, with Core
// holding coreLOC lines.
func buildReport(runID string, ts time.Time, coreLOC int) *report.Report {
	set := modules.NewSet()
	app := set.GetOrCreate("App")
	app.Root.Insert(nil, facts.FileFact{Path: "App/Main.swift", SourceFact: facts.SourceFact{LOC: 10, CommentCount: 2}})
	core := set.GetOrCreate("Core")
	core.Root.Insert(nil, facts.FileFact{Path: "Core/Cache.swift", SourceFact: facts.SourceFact{LOC: coreLOC}})
	app.AddImport(core)
	tests := set.GetOrCreate("Core_Test")
	tests.IsTest = true
	tests.Root.Insert(nil, facts.FileFact{Path: "Core/Tests/CacheTests.swift", SourceFact: facts.SourceFact{LOC: 4}})

	r := report.Build(report.Input{Modules: set.All(), System: metrics.DefaultSystemLibraries()})
	r.Meta.RunID = runID
	r.Meta.Root = "/repo"
	r.Meta.GeneratedAt = ts
	r.Meta.Files = 3
	return r
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndRuns(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, buildReport("run-1", base, 20)))
	require.NoError(t, store.Record(ctx, buildReport("run-2", base.Add(time.Hour), 30)))
	require.NoError(t, store.Record(ctx, buildReport("run-3", base.Add(2*time.Hour), 40)))

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-3", runs[2].ID)
	assert.Equal(t, base, runs[0].Timestamp)
	assert.Equal(t, "/repo", runs[0].Root)
	assert.Equal(t, 3, runs[0].Files)
	assert.Equal(t, 2, runs[0].Modules)
	assert.Equal(t, 1, runs[0].TestModules)
	assert.Equal(t, 34, runs[0].LOC)
	assert.Equal(t, 2, runs[0].NOC)

	latest, err := store.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "run-2", latest[0].ID)
	assert.Equal(t, "run-3", latest[1].ID)
}

func TestStore_Trend(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, buildReport("run-1", base, 20)))
	require.NoError(t, store.Record(ctx, buildReport("run-2", base.Add(time.Minute), 25)))

	points, err := store.Trend(ctx, "Core", 0)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 20, points[0].LOC)
	assert.Equal(t, 25, points[1].LOC)
	require.NotNil(t, points[1].FanIn)
	assert.Equal(t, 1, *points[1].FanIn)
	require.NotNil(t, points[1].Instability)
	assert.Equal(t, 0.0, *points[1].Instability)
	assert.False(t, points[1].IsTest)

	testPoints, err := store.Trend(ctx, "Core_Test", 1)
	require.NoError(t, err)
	require.Len(t, testPoints, 1)
	assert.True(t, testPoints[0].IsTest)
	assert.Nil(t, testPoints[0].FanIn)
	assert.Nil(t, testPoints[0].Distance)
	assert.Equal(t, "run-2", testPoints[0].RunID)

	none, err := store.Trend(ctx, "Missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_RecordSameRunReplaces(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	ts := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, buildReport("run-1", ts, 20)))
	require.NoError(t, store.Record(ctx, buildReport("run-1", ts, 50)))

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 64, runs[0].LOC)

	points, err := store.Trend(ctx, "Core", 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 50, points[0].LOC)
}

func TestStore_RecordAssignsRunID(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Record(ctx, buildReport("", time.Time{}, 1)))
	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].ID)
	assert.False(t, runs[0].Timestamp.IsZero())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)

	_, err = Open(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(store.db))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	var version int
	require.NoError(t, reopened.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestEnsureSchema_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()
	assert.ErrorContains(t, EnsureSchema(db), "newer than supported")
}
