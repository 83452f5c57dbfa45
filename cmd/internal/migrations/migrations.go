// Package migrations applies bugtrack's embedded PostgreSQL schema.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/*.sql
var files embed.FS

const schemaToken = "{{schema}}"

var schemaRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Migration is one embedded SQL file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded migrations ordered by version, with schema
// substituted into every statement.
func Load(schema string) ([]Migration, error) {
	if !schemaRe.MatchString(schema) {
		return nil, fmt.Errorf("migrations: invalid schema %q", schema)
	}
	quoted := pgx.Identifier{schema}.Sanitize()

	entries, err := files.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	out := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		// "001_users.sql" -> 1
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		content, err := files.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{
			Version: version,
			Name:    entry.Name(),
			SQL:     strings.ReplaceAll(string(content), schemaToken, quoted),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Apply creates schema if needed and runs every migration not yet recorded in
// schema.schema_migrations. Each migration runs in its own transaction.
func Apply(ctx context.Context, pool *pgxpool.Pool, schema string, log *slog.Logger) error {
	if pool == nil {
		return fmt.Errorf("migrations: nil pool")
	}
	if log == nil {
		log = slog.Default()
	}

	migs, err := Load(schema)
	if err != nil {
		return err
	}
	quoted := pgx.Identifier{schema}.Sanitize()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+quoted); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if _, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS `+quoted+`.schema_migrations (
		   version INTEGER PRIMARY KEY,
		   applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		 )`,
	); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	for _, m := range migs {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM `+quoted+`.schema_migrations WHERE version = $1)`,
			m.Version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.Name, err)
		}
		if exists {
			continue
		}

		log.Info("db.migration.apply", "file", m.Name, "version", m.Version, "schema", schema)

		if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO `+quoted+`.schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`,
				m.Version,
			)
			return err
		}); err != nil {
			return fmt.Errorf("applying migration %s: %w", m.Name, err)
		}
	}
	return nil
}
