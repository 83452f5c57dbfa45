package bugs

import (
	"context"
	"testing"
	"time"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/internal/pgtest"
	"bugtrack/cmd/security/password"
)

func TestPostgresStore_Contract(t *testing.T) {
	t.Parallel()

	pool, schema := pgtest.Open(t)

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	users, err := identity.NewPostgresStore(pool,
		identity.WithSchema(schema),
		identity.WithPasswordHasher(identity.NewPasswordHasher(cfg)),
	)
	if err != nil {
		t.Fatalf("identity store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	author, err := users.CreateUser(ctx, identity.CreateUserInput{
		Username: "pg-author",
		Email:    "pg-author@example.com",
		Password: "very-strong-password-1",
	})
	if err != nil {
		t.Fatalf("create author: %v", err)
	}

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	storeContract(t, s, author.ID)
}
