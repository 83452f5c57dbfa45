// Package pgtest provisions throwaway PostgreSQL schemas for integration tests.
//
// Resolution order:
//  1. BUGTRACK_DATABASE_URL: connect to an existing server.
//  2. Otherwise start postgres:16-alpine with testcontainers.
//
// Each call gets a fresh schema with every migration applied, dropped on cleanup.
// Tests skip (outside CI) when no database can be reached.
package pgtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"bugtrack/cmd/identity/ids"
	"bugtrack/cmd/internal/migrations"
)

// DatabaseURLEnv points integration tests at an existing server.
const DatabaseURLEnv = "BUGTRACK_DATABASE_URL"

// Open returns a pool and a freshly migrated schema name.
func Open(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true")
	}

	dsn := strings.TrimSpace(os.Getenv(DatabaseURLEnv))
	if dsn == "" {
		dsn = startContainer(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse %s: %v", DatabaseURLEnv, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		if shouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("ping: %v", err)
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "bugtrack_it_" + strings.ToLower(id)

	if err := migrations.Apply(ctx, pool, schema, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	return pool, schema
}

// Overridden in tests.
var (
	checkRuntime = testcontainers.SkipIfProviderIsNotHealthy
	runPostgres  = runPostgresContainer
)

func startContainer(t *testing.T) string {
	t.Helper()

	inCI := os.Getenv("CI") != ""
	if !inCI {
		// testcontainers panics when no Docker host can be resolved.
		checkRuntime(t)
	}

	ctx := context.Background()
	container, err := startPostgres(ctx)
	if err != nil {
		if inCI {
			t.Fatalf("start postgres container: %v", err)
		}
		t.Skipf("integration test skipped: no %s and no container runtime: %v", DatabaseURLEnv, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	return dsn
}

// startPostgres turns a testcontainers panic into an error.
func startPostgres(ctx context.Context) (c *pgmodule.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("container runtime: %v", r)
		}
	}()
	return runPostgres(ctx)
}

func runPostgresContainer(ctx context.Context) (*pgmodule.PostgresContainer, error) {
	return pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("bugtrack_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
}

func shouldSkip(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
