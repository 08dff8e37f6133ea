package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startTestDB spins up a disposable PostgreSQL container, applies the
// schema, and returns the wrapped connection plus a reset function
// that clears every table between subtests.
func startTestDB(t *testing.T) (*DB, func(*testing.T)) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("insight_test"),
		tcpostgres.WithUsername("insight"),
		tcpostgres.WithPassword("insight"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	var conn *sqlx.DB
	for attempt := 0; attempt < 30; attempt++ {
		if conn, err = sqlx.Connect("postgres", dsn); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	applySchema(t, conn)

	reset := func(t *testing.T) {
		t.Helper()
		_, err := conn.Exec(
			`TRUNCATE TABLE business_inputs, competitor_sites, competitor_raw_content, competitor_analysis CASCADE`)
		if err != nil {
			t.Fatalf("truncating tables: %v", err)
		}
	}

	return &DB{DB: conn}, reset
}

// applySchema runs every migration file in order
func applySchema(t *testing.T, conn *sqlx.DB) {
	t.Helper()

	var dir string
	for _, candidate := range []string{"../../../migrations", "migrations"} {
		if _, err := os.Stat(candidate); err == nil {
			dir = candidate
			break
		}
	}
	if dir == "" {
		t.Fatal("migrations directory not found")
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		t.Fatalf("listing migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		ddl, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("reading %s: %v", file, err)
		}
		if _, err := conn.Exec(string(ddl)); err != nil {
			t.Fatalf("applying %s: %v", filepath.Base(file), err)
		}
	}
}
