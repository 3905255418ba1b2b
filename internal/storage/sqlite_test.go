package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityscan/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func strPtr(s string) *string { return &s }

func sampleHits() []types.EntityHit {
	return []types.EntityHit{
		{
			Text:            "Hans Müller",
			Label:           "PER",
			HitLinePosition: 0,
			Start:           0,
			End:             11,
			HitLine:         "Hans Müller wohnt in Berlin.",
			NextLine:        strPtr("Er arbeitet bei Siemens."),
		},
		{
			Text:            "Berlin",
			Label:           "LOC",
			HitLinePosition: 0,
			Start:           21,
			End:             27,
			HitLine:         "Hans Müller wohnt in Berlin.",
			NextLine:        strPtr("Er arbeitet bei Siemens."),
		},
		{
			Text:            "Siemens",
			Label:           "ORG",
			HitLinePosition: 1,
			Start:           16,
			End:             23,
			PrevLine:        strPtr("Hans Müller wohnt in Berlin."),
			HitLine:         "Er arbeitet bei Siemens.",
		},
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}

func TestSaveScan(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	scan := &Scan{
		FilePath:      "brief.txt",
		ContentHash:   sha256.Sum256([]byte("Hans Müller wohnt in Berlin.\n")),
		SizeBytes:     30,
		ChunkSize:     100000,
		Engine:        "regex",
		ChunkCount:    1,
		SkippedChunks: 0,
		Duration:      1500 * time.Millisecond,
	}

	hits := sampleHits()
	require.NoError(t, storage.SaveScan(ctx, scan, hits))
	assert.Greater(t, scan.ID, int64(0))
	assert.Equal(t, 3, scan.EntityCount)
	assert.False(t, scan.CreatedAt.IsZero())

	retrieved, err := storage.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.FilePath, retrieved.FilePath)
	assert.Equal(t, scan.ContentHash, retrieved.ContentHash)
	assert.Equal(t, int64(30), retrieved.SizeBytes)
	assert.Equal(t, 100000, retrieved.ChunkSize)
	assert.Equal(t, "regex", retrieved.Engine)
	assert.Equal(t, 3, retrieved.EntityCount)
	assert.Equal(t, 1, retrieved.ChunkCount)
	assert.Equal(t, 1500*time.Millisecond, retrieved.Duration)

	entities, err := storage.ListEntities(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, hits, entities)
}

func TestSaveScan_NoEntities(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	scan := &Scan{FilePath: "leer.txt", ChunkSize: 10, Engine: "regex"}
	require.NoError(t, storage.SaveScan(ctx, scan, nil))

	entities, err := storage.ListEntities(ctx, scan.ID)
	require.NoError(t, err)
	assert.NotNil(t, entities)
	assert.Empty(t, entities)
}

func TestSaveScan_RollbackOnCancel(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.SaveScan(ctx, &Scan{FilePath: "x", Engine: "regex"}, sampleHits())
	require.Error(t, err)

	scans, err := storage.ListScans(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestGetScan_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetScan(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.GetLatestScan(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScans(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	for _, path := range []string{"a.txt", "b.txt", "a.txt"} {
		require.NoError(t, storage.SaveScan(ctx, &Scan{FilePath: path, ChunkSize: 1, Engine: "regex"}, nil))
	}

	scans, err := storage.ListScans(ctx, 0)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Greater(t, scans[0].ID, scans[1].ID, "newest first")

	limited, err := storage.ListScans(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := storage.GetLatestScan(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, scans[0].ID, latest.ID)
}

func TestDeleteScan(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	scan := &Scan{FilePath: "brief.txt", ChunkSize: 1, Engine: "regex"}
	require.NoError(t, storage.SaveScan(ctx, scan, sampleHits()))

	require.NoError(t, storage.DeleteScan(ctx, scan.ID))

	entities, err := storage.ListEntities(ctx, scan.ID)
	require.NoError(t, err)
	assert.Empty(t, entities, "entities cascade with their scan")

	assert.ErrorIs(t, storage.DeleteScan(ctx, scan.ID), ErrNotFound)
}

func TestCountEntitiesByLabel(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	hits := append(sampleHits(), types.EntityHit{Text: "Anna", Label: "PER", HitLine: "Anna"})
	scan := &Scan{FilePath: "brief.txt", ChunkSize: 1, Engine: "regex"}
	require.NoError(t, storage.SaveScan(ctx, scan, hits))

	counts, err := storage.CountEntitiesByLabel(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"PER": 2, "LOC": 1, "ORG": 1}, counts)
}

func TestMigrations_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.db")

	first, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveScan(context.Background(), &Scan{FilePath: "a.txt", ChunkSize: 1, Engine: "regex"}, sampleHits()))
	require.NoError(t, first.Close())

	// Reopening must not re-run applied migrations
	second, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer second.Close()

	scans, err := second.ListScans(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	require.NoError(t, RollbackMigration(ctx, storage.db))

	version, err := SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.True(t, version.Equal(semver.MustParse("1.0.0")))

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())

	require.NoError(t, RollbackMigration(ctx, storage.db))
	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())

	assert.Error(t, RollbackMigration(ctx, storage.db))
}
