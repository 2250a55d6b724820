package db

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/testutil"
)

// newTestDB returns a migrated database in a temporary directory that is
// closed when the test ends.
func newTestDB(t testing.TB) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "posture_test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testSequence returns n neutral frames at rate.
func testSequence(t testing.TB, n, rate int) pose.Sequence {
	t.Helper()
	seq, err := pose.NewSequence(testutil.RepeatPose(testutil.NeutralPose(), n), rate)
	if err != nil {
		t.Fatalf("NewSequence failed: %v", err)
	}
	return seq
}
