package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/josh-kwaku/banking-core/internal/repository"
)

const (
	SchemaAccounts     = "accounts"
	SchemaTransactions = "transactions"
	SchemaTransfers    = "transfers"
)

// SetupTestDB starts a throwaway Postgres and applies the migrations of each
// named service schema. With no schemas, all of them are applied.
func SetupTestDB(t *testing.T, schemas ...string) *sql.DB {
	t.Helper()
	ctx := context.Background()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("banking_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	if len(schemas) == 0 {
		schemas = []string{SchemaAccounts, SchemaTransactions, SchemaTransfers}
	}
	dir := findMigrationsDir()
	for _, schema := range schemas {
		if err := repository.Migrate(db, dir, schema); err != nil {
			t.Fatalf("run %s migrations: %v", schema, err)
		}
	}

	return db
}

// Walk up from CWD to find the project root migrations directory.
// go test sets CWD to the package under test, so we may need to traverse up.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for range 10 {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return "migrations"
}
