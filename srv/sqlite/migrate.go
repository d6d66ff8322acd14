package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFs embed.FS

// MigrateUp brings the quote, workflow and step tables to the latest schema.
func (s Storage) MigrateUp(dbName string) error {
	if err := migrateUp(s.db.db, dbName); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

type migrator struct {
	m      *migrate.Migrate
	src    source.Driver
	dbName string
}

func newMigrator(db *sql.DB, dbName string) (*migrator, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &migrator{m: m, src: src, dbName: dbName}, nil
}

func migrateUp(db *sql.DB, dbName string) error {
	mg, err := newMigrator(db, dbName)
	if err != nil {
		return err
	}

	err = mg.m.Up()
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	// the schema version is unknown to this build
	if errors.Is(err, fs.ErrNotExist) {
		ahead, aheadErr := mg.aheadOfBuild()
		if aheadErr != nil {
			return aheadErr
		}
		if ahead {
			return nil
		}
	}
	return fmt.Errorf("failed to apply migrations: %w", err)
}

// aheadOfBuild is true when a newer quoteflow already migrated the database.
func (mg *migrator) aheadOfBuild() (bool, error) {
	current, dirty, err := mg.m.Version()
	if err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return false, fmt.Errorf("schema %s is in dirty state at version %d", mg.dbName, current)
	}

	latest, err := latestVersion(mg.src)
	if err != nil {
		return false, err
	}
	if current <= latest {
		return false, nil
	}

	log.Warn().
		Str("database", mg.dbName).
		Uint("schemaVersion", current).
		Uint("latestKnown", latest).
		Msg("Schema is newer than this build, leaving it as is")
	return true, nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("failed to read first migration: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read migration after %d: %w", version, err)
		}
		version = next
	}
}
