package bugs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bugtrack/cmd/identity/ids"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "bugtrack").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("bugs: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "bugtrack"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("bugs: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "bugs"}.Sanitize()
}

const bugColumns = `id, title, content, author_id, tags, status, created_at, updated_at`

func scanBug(row pgx.Row) (Bug, error) {
	var (
		b      Bug
		status string
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Content, &b.Author, &b.Tags, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Bug{}, err
	}
	b.Status = Status(status)
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return b, nil
}

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Bug, error) {
	if err := in.Normalize(); err != nil {
		return Bug{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC().Truncate(time.Microsecond)

	id, err := ids.NewULID(now)
	if err != nil {
		return Bug{}, err
	}

	b := Bug{
		ID:        id,
		Title:     in.Title,
		Content:   in.Content,
		Author:    in.Author,
		Tags:      in.Tags,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+bugColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		b.ID, b.Title, b.Content, b.Author, b.Tags, string(b.Status), now,
	)
	if err != nil {
		return Bug{}, fmt.Errorf("bugs: insert: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Bug, error) {
	// LIMIT NULL means no limit.
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+bugColumns+` FROM `+s.table()+` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("bugs: list: %w", err)
	}
	defer rows.Close()

	out := make([]Bug, 0)
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("bugs: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bugs: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Bug, error) {
	b, err := scanBug(s.pool.QueryRow(ctx,
		`SELECT `+bugColumns+` FROM `+s.table()+` WHERE id = $1`,
		strings.TrimSpace(id),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bug{}, ErrNotFound
		}
		return Bug{}, fmt.Errorf("bugs: get: %w", err)
	}
	return b, nil
}

// Update locks the row, applies in, and writes back in one transaction.
func (s *PostgresStore) Update(ctx context.Context, id string, in UpdateInput) (Bug, error) {
	id = strings.TrimSpace(id)
	if !in.Now.IsZero() {
		in.Now = in.Now.UTC().Truncate(time.Microsecond)
	} else {
		in.Now = time.Now().UTC().Truncate(time.Microsecond)
	}

	var out Bug
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	}, func(tx pgx.Tx) error {
		b, err := scanBug(tx.QueryRow(ctx,
			`SELECT `+bugColumns+` FROM `+s.table()+` WHERE id = $1 FOR UPDATE`,
			id,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		changed, err := in.Apply(&b)
		if err != nil {
			return err
		}
		out = b
		if !changed {
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE `+s.table()+`
			    SET title = $2, content = $3, tags = $4, status = $5, updated_at = $6
			  WHERE id = $1`,
			b.ID, b.Title, b.Content, b.Tags, string(b.Status), b.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return Bug{}, err
		}
		return Bug{}, fmt.Errorf("bugs: update: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE id = $1`,
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("bugs: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
