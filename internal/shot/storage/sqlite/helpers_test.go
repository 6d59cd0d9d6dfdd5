package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupTestStore opens a migrated store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := setupTestStoreAt(t)
	return s
}

// setupTestStoreAt is setupTestStore that also returns the database path.
func setupTestStoreAt(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

// holdWriteLock takes the database write lock from a second connection and
// releases it after hold. The returned channel closes once it is released.
func holdWriteLock(t *testing.T, path string, hold time.Duration) <-chan struct{} {
	t.Helper()
	other, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	ctx := context.Background()
	conn, err := other.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	released := make(chan struct{})
	time.AfterFunc(hold, func() {
		defer close(released)
		conn.ExecContext(ctx, "ROLLBACK")
		conn.Close()
	})
	return released
}
