package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynencounters/npc-engine/internal/model"
	"github.com/dynencounters/npc-engine/internal/session"
)

func newMemoryManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testSession() session.Session {
	return session.Session{ID: uuid.New(), Name: "test", StartedAt: time.Now().UTC().Truncate(time.Second)}
}

func TestConnectSqlite_Memory(t *testing.T) {
	m := newMemoryManager(t)

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	assert.NoError(t, m.SqlDB.Ping())
}

func TestSetup_MigratesAndRecordsSession(t *testing.T) {
	m := newMemoryManager(t)
	s := testSession()

	require.NoError(t, m.Setup())
	require.NoError(t, m.RecordSession(s))

	for _, tbl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(tbl), "missing table for %T", tbl)
	}

	var got model.Session
	require.NoError(t, m.DB.First(&got, "id = ?", s.ID).Error)
	assert.Equal(t, "test", got.Name)

	// idempotent
	require.NoError(t, m.Setup())
	require.NoError(t, m.RecordSession(s))
	var count int64
	m.DB.Model(&model.Session{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetup_NoDB(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
	assert.Error(t, m.RecordSession(testSession()))
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	a := newMemoryManager(t)
	b := newMemoryManager(t)
	require.NoError(t, a.Setup())

	assert.False(t, b.DB.Migrator().HasTable(&model.Session{}))
}

func TestDumpMemoryToDisk(t *testing.T) {
	m := newMemoryManager(t)
	require.NoError(t, m.Setup())
	require.NoError(t, m.RecordSession(testSession()))

	m.SqliteFilePath = filepath.Join(t.TempDir(), "dumps", "session.db")
	require.NoError(t, m.DumpMemoryToDisk())
	// second dump replaces the first
	require.NoError(t, m.DumpMemoryToDisk())

	disk := NewManager(zerolog.Nop())
	require.NoError(t, disk.ConnectSqlite(m.SqliteFilePath))
	defer disk.Close()

	var count int64
	require.NoError(t, disk.DB.Model(&model.Session{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryToDisk_NoPath(t *testing.T) {
	m := newMemoryManager(t)
	assert.ErrorIs(t, m.DumpMemoryToDisk(), ErrNoDumpPath)
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)
}

func TestClose_NoConnection(t *testing.T) {
	assert.NoError(t, NewManager(zerolog.Nop()).Close())
}
