package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpAndRollbackSQLite(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, Up(db, SQLite))
	// Running twice is a no-op
	require.NoError(t, Up(db, SQLite))

	version, dirty, err := Version(db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	_, err = db.Exec("INSERT INTO folders (lft, rgt, level, name) VALUES (1, 2, 1, 'root')")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO media_folders (lft, rgt, level, name) VALUES (1, 2, 1, 'root')")
	require.NoError(t, err)

	require.NoError(t, RollbackMigration(db, SQLite))
	version, _, err = Version(db, SQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.Exec("SELECT 1 FROM folders")
	assert.Error(t, err)
}

func TestUnsupportedDriver(t *testing.T) {
	db := openSQLite(t)
	assert.Error(t, Up(db, "mysql"))
}
