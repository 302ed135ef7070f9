package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies the migrations under dir/schema. Each service keeps its own
// version table so services can share a database in development.
func Migrate(db *sql.DB, dir, schema string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations_" + schema,
	})
	if err != nil {
		return fmt.Errorf("Migrate: driver: %w", err)
	}

	abs, err := filepath.Abs(filepath.Join(dir, schema))
	if err != nil {
		return fmt.Errorf("Migrate: path: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	if err != nil {
		return fmt.Errorf("Migrate: %s: %w", schema, err)
	}
	// m.Close is not called: it would close db, which the caller owns.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("Migrate: %s up: %w", schema, err)
	}
	return nil
}
