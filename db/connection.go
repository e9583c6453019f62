package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// database drivers: lib/pq registers "postgres", modernc registers "sqlite"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/dcbradley/netblast/config"
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

func NewConnection(driver, databaseURL string) (*sqlx.DB, error) {
	if driver == config.DriverSQLite {
		databaseURL = withSQLiteDefaults(databaseURL)
	}

	db, err := sqlx.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch driver {
	case config.DriverSQLite:
		// a single writer keeps claims serialized
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// withSQLiteDefaults makes timestamps sortable as text and enables foreign keys
func withSQLiteDefaults(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_time_format=") {
		params = append(params, "_time_format=sqlite")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
