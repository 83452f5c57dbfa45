package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bugtrack/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is the Postgres schema the migrations create.
const DefaultSchema = "bugtrack"

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; the store never closes it. Schema and
// table identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	hasher PasswordHasher
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordHasher overrides the password hasher.
func WithPasswordHasher(h PasswordHasher) PostgresOption {
	return func(s *PostgresStore) error {
		s.hasher = h
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateUser inserts the user row and its credentials in one transaction.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validateCreate(op, &in); err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	// Postgres keeps microseconds; truncate so callers see what a re-read returns.
	now = now.UTC().Truncate(time.Microsecond)

	pwHash, err := s.hasher.Hash(op, in.Password, accountIdentifiers(in)...)
	if err != nil {
		return User{}, err
	}

	userID, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           userID,
		Username:     in.Username,
		UsernameNorm: NormalizeUsername(in.Username),
		Email:        in.Email,
		EmailNorm:    NormalizeEmail(in.Email),
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	_, err = tx.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm, display_name, created_at
		   ) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		u.ID, u.Username, u.UsernameNorm, u.Email, u.EmailNorm, u.DisplayName, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+creds+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		u.ID, pwHash, now,
	)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, NotFoundError{Op: op, By: "id"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, email, email_norm, COALESCE(display_name, ''), created_at
		   FROM `+pgIdent(s.schema, "users")+`
		  WHERE id = $1`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, pgNotFound(op, "id", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	row := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, email, email_norm, COALESCE(display_name, ''), created_at
		   FROM `+pgIdent(s.schema, "users")+`
		  WHERE email_norm = $1`,
		NormalizeEmail(email),
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, pgNotFound(op, "email", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	var (
		out UserAuth
		u   = &out.User
	)
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.username_norm, u.email, u.email_norm,
		        COALESCE(u.display_name, ''), u.created_at, c.password_hash
		   FROM `+pgIdent(s.schema, "users")+` u
		   JOIN `+pgIdent(s.schema, "user_credentials")+` c ON c.user_id = u.id
		  WHERE u.email_norm = $1`,
		NormalizeEmail(email),
	).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.Email, &u.EmailNorm, &u.DisplayName, &u.CreatedAt, &out.PasswordHash)
	if err != nil {
		return UserAuth{}, pgNotFound(op, "email", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.Email, &u.EmailNorm, &u.DisplayName, &u.CreatedAt)
	return u, err
}

// ---- helpers ----

func pgNotFound(op, by string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFoundError{Op: op, By: by}
	}
	return err
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names, then fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username", true
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}

var _ Store = (*PostgresStore)(nil)
