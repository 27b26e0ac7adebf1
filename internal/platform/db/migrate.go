package db

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationStatus describes one embedded migration relative to the database.
type MigrationStatus struct {
	Version uint
	Applied bool
}

// Migrator applies the embedded SQL migrations with golang-migrate.
type Migrator struct {
	src source.Driver
	m   *migrate.Migrate
}

// NewMigrator reads migrations from migrationsFS (files named
// <version>_<name>.up.sql / .down.sql at its root).
func NewMigrator(databaseURL string, migrationsFS fs.FS) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{src: src, m: m}, nil
}

// Up applies every pending migration. Having nothing to apply is not an error.
func (mg *Migrator) Up() (uint, error) {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	version, _, err := mg.Version()
	return version, err
}

// Version returns the applied version; zero when nothing has been applied.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration and whether it has been applied.
func (mg *Migrator) Status() ([]MigrationStatus, bool, error) {
	current, dirty, err := mg.Version()
	if err != nil {
		return nil, false, err
	}
	versions, err := sourceVersions(mg.src)
	if err != nil {
		return nil, false, err
	}

	statuses := make([]MigrationStatus, 0, len(versions))
	for _, v := range versions {
		statuses = append(statuses, MigrationStatus{Version: v, Applied: current != 0 && v <= current})
	}
	return statuses, dirty, nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func sourceVersions(src source.Driver) ([]uint, error) {
	v, err := src.First()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read first migration: %w", err)
	}

	versions := []uint{v}
	for {
		next, err := src.Next(v)
		if errors.Is(err, os.ErrNotExist) {
			return versions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read migration after %d: %w", v, err)
		}
		versions = append(versions, next)
		v = next
	}
}
