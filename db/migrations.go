package db

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dcbradley/netblast/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// RunMigrations brings the schema up to date for the given driver.
// SQLite runs on the already-open handle so in-memory databases keep their schema.
// On Postgres the tables and the migration history are created inside schema,
// which is created first when missing.
func RunMigrations(conn *sqlx.DB, driver, databaseURL, schema string) error {
	src, err := iofs.New(migrationFiles, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations for %s: %w", driver, err)
	}

	var m *migrate.Migrate
	switch driver {
	case config.DriverSQLite:
		dbDriver, err := sqlite.WithInstance(conn.DB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to create sqlite migration driver: %w", err)
		}
		// closing m would close the shared handle, so it is left open
		m, err = migrate.NewWithInstance("iofs", src, config.DriverSQLite, dbDriver)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
	case config.DriverPostgres:
		migrateURL, err := postgresSchemaURL(conn, databaseURL, schema)
		if err != nil {
			return err
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, migrateURL)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
		defer m.Close()
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("✅ Database migrations completed successfully")
	return nil
}

// postgresSchemaURL makes sure schema exists and returns databaseURL with its
// search_path pinned to it, so unqualified DDL lands where the repositories query.
func postgresSchemaURL(conn *sqlx.DB, databaseURL, schema string) (string, error) {
	if schema == "" {
		return databaseURL, nil
	}

	if _, err := conn.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schema)); err != nil {
		return "", fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	return withSearchPath(databaseURL, schema)
}

func withSearchPath(databaseURL, schema string) (string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("DB_URL must be a postgres:// URL to run migrations")
	}
	query := parsed.Query()
	query.Set("search_path", schema)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
