// Package migrations embeds the grant schema migrations shared by the
// Postgres and SQLite store backends.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// Up brings the grant schema to the latest version. Engine selects the
// migrate database driver and must be "postgres" or "sqlite".
func Up(db *sql.DB, engine string) error {
	source, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var driver database.Driver
	switch engine {
	case "postgres":
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{
			MigrationsTable: "schema_migrations",
		})
	case "sqlite":
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{
			MigrationsTable: "schema_migrations",
		})
	default:
		return fmt.Errorf("unknown migration engine %q", engine)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", engine, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, engine, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: m is not closed here, that would close the caller's db handle.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
