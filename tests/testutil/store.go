package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nhle/workhub/internal/kvsync"
	"github.com/nhle/workhub/internal/logger"
)

// NewTestSQLiteBackend opens a SQLiteBackend in a temporary directory with
// all migrations applied and a short poll interval. It automatically
// closes the backend when the test completes.
func NewTestSQLiteBackend(t *testing.T) *kvsync.SQLiteBackend {
	t.Helper()

	return OpenTestSQLiteBackend(t, filepath.Join(t.TempDir(), "state.db"))
}

// OpenTestSQLiteBackend opens a SQLiteBackend on path. Two backends opened
// on the same path behave like two processes sharing a state file.
func OpenTestSQLiteBackend(t *testing.T, path string) *kvsync.SQLiteBackend {
	t.Helper()

	b, err := kvsync.NewSQLiteBackend(path,
		kvsync.WithPollInterval(10*time.Millisecond),
		kvsync.WithSQLiteLogger(logger.Discard()),
	)
	if err != nil {
		t.Fatalf("creating test backend: %v", err)
	}

	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("closing test backend: %v", err)
		}
	})

	return b
}
