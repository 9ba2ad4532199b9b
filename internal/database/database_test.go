package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_NilLogger(t *testing.T) {
	db, err := NewDB(":memory:", nil)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err, "table creation is idempotent")
	defer db.Close()
}

func TestNewDB_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewDB(filepath.Join(file, "db.sqlite"), nil)
	assert.Error(t, err)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestNewDB_JournalMode(t *testing.T) {
	ctx := context.Background()

	file, err := NewDB(filepath.Join(t.TempDir(), "wal.db"), nil)
	require.NoError(t, err)
	defer file.Close()

	var mode string
	require.NoError(t, file.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	mem := setupTestDB(t)
	require.NoError(t, mem.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "memory", mode)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_busy_timeout=5000", dsn(":memory:"))
	assert.Equal(t, "data/app.db?_busy_timeout=5000&_journal_mode=WAL", dsn("data/app.db"))
	assert.Equal(t, "file:x?mode=memory&cache=shared&_busy_timeout=5000", dsn("file:x?mode=memory&cache=shared"))
}
