package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// Apply brings the schema for driver up to date. It opens its own connection
// because migrate closes the database handle it was given.
func Apply(driver, dsn string) error {
	src, err := iofs.New(files, driver)
	if err != nil {
		return fmt.Errorf("no migrations for driver %q: %w", driver, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	target, err := withInstance(driver, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		_ = target.Close()
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func withInstance(driver string, db *sql.DB) (database.Driver, error) {
	switch driver {
	case "postgres":
		return migratepg.WithInstance(db, &migratepg.Config{})
	case "sqlite3":
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}
