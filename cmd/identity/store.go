package identity

import (
	"context"
	"time"
)

// User is bugtrack's security principal.
type User struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string
	DisplayName  string
	CreatedAt    time.Time
}

// UserAuth pairs a user with its stored password hash. It never leaves the
// login path.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a new account. Password is plain text and is hashed
// by the store.
type CreateUserInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
	Now         time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}
