package repository

import (
	"os"
	"path/filepath"

	"github.com/ammiranda/nestedset_service/config"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteStore creates a SQLite-backed store. An empty path selects
// ~/.nestedset/tree.db.
func NewSQLiteStore(path string) *SQLStore {
	if path == "" {
		path = defaultSQLitePath()
	}

	return NewStore(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   path + "?_busy_timeout=5000",
	})
}

func defaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	dataDir := filepath.Join(homeDir, ".nestedset")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		// Fallback to current directory if home directory is not accessible
		dataDir = "."
	}

	return filepath.Join(dataDir, "tree.db")
}
