package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var tempStore int
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	assert.Equal(t, 2, tempStore) // 2 = MEMORY
}

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second MigrateUp should be a no-op")

	v, dirty, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='reference_sequences'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReferenceRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	saved, err := db.SaveReference(ctx, "  Cat-camel  ", "hernia discal lumbar", testSequence(t, 12, 2))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Cat-camel", saved.Name)
	assert.Equal(t, 12, saved.FrameCount)
	assert.Equal(t, 2, saved.SamplingRate)

	got, err := db.GetReference(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ReferenceSummary, got.ReferenceSummary)
	require.Equal(t, 12, got.Sequence.Len())
	assert.Equal(t, 2, got.Sequence.Rate())
	assert.Equal(t, saved.Sequence.Frame(0).Flat(), got.Sequence.Frame(0).Flat())
}

func TestSaveReferenceValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.SaveReference(ctx, "   ", "", testSequence(t, 3, 1))
	assert.True(t, errors.Is(err, ErrInvalidReference), "blank name: %v", err)
}

func TestListAndDeleteReferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	refs, err := db.ListReferences(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.NotNil(t, refs, "empty list should encode as []")

	a, err := db.SaveReference(ctx, "alpha", "", testSequence(t, 3, 1))
	require.NoError(t, err)
	_, err = db.SaveReference(ctx, "beta", "", testSequence(t, 5, 1))
	require.NoError(t, err)

	refs, err = db.ListReferences(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	require.NoError(t, db.DeleteReference(ctx, a.ID))
	assert.ErrorIs(t, db.DeleteReference(ctx, a.ID), ErrReferenceNotFound)

	_, err = db.GetReference(ctx, a.ID)
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	refs, err = db.ListReferences(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "beta", refs[0].Name)
}
