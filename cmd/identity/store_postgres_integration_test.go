package identity

import (
	"context"
	"testing"
	"time"

	"bugtrack/cmd/internal/pgtest"
)

func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool, schema := pgtest.Open(t)
	s, err := NewPostgresStore(pool, WithSchema(schema), WithPasswordHasher(cheapHasher(t)))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

func TestPostgresStore_CreateAndLookup(t *testing.T) {
	t.Parallel()

	s := newPostgresTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Username: "pg-user",
		Email:    "PG-User@Example.com",
		Password: "very-strong-password-1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.EmailNorm != "pg-user@example.com" || !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("unexpected user: %+v", byID)
	}

	auth, err := s.GetUserAuthByEmail(ctx, "pg-user@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetUserAuthByEmail: %v", err)
	}
	if auth.User.ID != u.ID || auth.PasswordHash == "" {
		t.Fatalf("unexpected auth record: %+v", auth.User)
	}

	if _, err := s.GetUserByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "missing@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresStore_CreateUser_Conflicts(t *testing.T) {
	t.Parallel()

	s := newPostgresTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	_, err := s.CreateUser(ctx, CreateUserInput{Username: "Navid", Email: "navid@example.com", Password: "very-strong-password-1"})
	if err != nil {
		t.Fatalf("create user 1: %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Username: "nAvId", Email: "other@example.com", Password: "very-strong-password-2"})
	if ConflictField(err) != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Username: "other", Email: "NAVID@example.COM", Password: "very-strong-password-3"})
	if ConflictField(err) != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}
}
