// Package migrations embeds the schema of the user and node tables for every
// supported driver and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// Supported drivers, matching the database/sql driver names
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// Up applies every pending migration for the given driver
func Up(db *sql.DB, driver string) error {
	m, closeSource, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	defer closeSource()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}
	return nil
}

// RollbackMigration rolls back the last applied migration
func RollbackMigration(db *sql.DB, driver string) error {
	m, closeSource, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	defer closeSource()

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to rollback")
		}
		return fmt.Errorf("error rolling back migration: %w", err)
	}
	return nil
}

// Version reports the applied schema version
func Version(db *sql.DB, driver string) (uint, bool, error) {
	m, closeSource, err := newMigrate(db, driver)
	if err != nil {
		return 0, false, err
	}
	defer closeSource()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate wires the embedded source for driver to the database instance.
// The database driver is not closed afterwards since that would close db.
func newMigrate(db *sql.DB, driver string) (*migrate.Migrate, func(), error) {
	var (
		instance database.Driver
		err      error
	)
	switch driver {
	case Postgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		instance, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error creating migration driver: %w", err)
	}

	source, err := iofs.New(files, driver)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("error creating migration instance: %w", err)
	}

	return m, func() { source.Close() }, nil
}
