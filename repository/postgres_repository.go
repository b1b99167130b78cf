package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ammiranda/nestedset_service/config"
	"github.com/ammiranda/nestedset_service/migrations"

	_ "github.com/lib/pq"
)

// SQLStore implements Store on a database/sql connection pool
type SQLStore struct {
	db     *sql.DB
	config *config.DatabaseConfig
}

// NewPostgresStore creates a store from the database settings of cfgProvider
func NewPostgresStore(cfgProvider config.Provider) (*SQLStore, error) {
	ctx := context.Background()
	cfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config: %w", err)
	}

	return NewStore(cfg), nil
}

// NewStore creates a store for an already loaded configuration
func NewStore(cfg *config.DatabaseConfig) *SQLStore {
	return &SQLStore{
		config: cfg,
	}
}

// NewStoreWithDB wraps an open database; Initialize then only runs migrations
func NewStoreWithDB(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{
		db:     db,
		config: &config.DatabaseConfig{Driver: driver},
	}
}

// Initialize opens the connection pool and applies migrations
func (s *SQLStore) Initialize(ctx context.Context) error {
	if s.db == nil {
		db, err := sql.Open(s.config.Driver, s.config.DSN())
		if err != nil {
			return fmt.Errorf("error connecting to database: %w", err)
		}

		// Configure connection pool
		if s.config.Driver == config.DriverSQLite {
			// One writer at a time keeps SQLite from reporting SQLITE_BUSY
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(25)
			db.SetConnMaxLifetime(5 * time.Minute)
		}

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("error pinging database: %w", err)
		}
		s.db = db
	}

	if err := migrations.Up(s.db, s.config.Driver); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}

	return nil
}

// Cleanup closes the database connection
func (s *SQLStore) Cleanup(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// DB exposes the underlying pool, nil before Initialize
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Repository returns the repository for table
func (s *SQLStore) Repository(table Table) (Repository, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return NewSQLRepository(s.db, s.config.Driver, table)
}
