package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"davos_stays/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run := models.NewRun(models.RunKindImport, "listings.xlsx")
	require.NoError(t, store.CreateRun(run))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	run.Status = models.RunStatusCompleted
	run.RowsSeen = 12
	run.Properties = 10
	run.PricingRules = 8
	run.ErrorsCount = 2
	run.RemoteStatus = "ok: 10 inserted"
	require.NoError(t, store.FinishRun(run))

	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, models.RunKindImport, got.Kind)
	assert.Equal(t, "listings.xlsx", got.Source)
	assert.Equal(t, 12, got.RowsSeen)
	assert.Equal(t, 10, got.Properties)
	assert.Equal(t, 8, got.PricingRules)
	assert.Equal(t, 2, got.ErrorsCount)
	assert.Equal(t, "ok: 10 inserted", got.RemoteStatus)
	assert.NotNil(t, got.FinishedAt)
}

func TestSQLiteGetRunMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetRun(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteRunLogs(t *testing.T) {
	store := newTestStore(t)
	run := models.NewRun(models.RunKindImport, "x.csv")
	require.NoError(t, store.CreateRun(run))

	require.NoError(t, store.Log(run.ID, models.LogLevelError, 5, "Row 5: Missing address"))
	require.NoError(t, store.Log(run.ID, models.LogLevelWarn, 9, "Row 9: looks like a duplicate of row 2"))
	require.NoError(t, store.Log(uuid.New(), models.LogLevelInfo, 0, "other run"))

	logs, err := store.GetRunLogs(run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogLevelError, logs[0].Level)
	assert.Equal(t, 5, logs[0].Row)
	assert.Equal(t, "Row 5: Missing address", logs[0].Message)
	assert.Equal(t, run.ID.String(), logs[1].RunID)
}

func TestSQLiteMediaLedger(t *testing.T) {
	store := newTestStore(t)

	m := &models.MediaEntry{
		OriginalURL: "https://beststaydavos.ch/wp-content/uploads/a.jpg",
		LocalPath:   "images/scraped/a.jpg",
		ContentHash: "abc123",
		SizeBytes:   6000,
		MimeType:    "image/jpeg",
		RemoteKey:   "images/scraped/a.jpg",
	}
	require.NoError(t, store.RecordMedia(m))

	// A later download without a mirror keeps the earlier remote key.
	again := *m
	again.ContentHash = "def456"
	again.RemoteKey = ""
	require.NoError(t, store.RecordMedia(&again))

	got, err := store.GetMediaByURL(m.OriginalURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, "images/scraped/a.jpg", got.RemoteKey)
	assert.Equal(t, int64(6000), got.SizeBytes)

	count, err := store.MediaCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	missing, err := store.GetMediaByURL("https://nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteRecentRuns(t *testing.T) {
	store := newTestStore(t)

	older := models.NewRun(models.RunKindScrapeSite, "https://beststaydavos.ch/accommodation/")
	older.StartedAt = older.StartedAt.Add(-time.Hour)
	require.NoError(t, store.CreateRun(older))
	newer := models.NewRun(models.RunKindImport, "listings.xlsx")
	require.NoError(t, store.CreateRun(newer))

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, models.RunKindScrapeSite, runs[1].Kind)

	runs, err = store.RecentRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
