package auth

import (
	"context"
	"time"

	"bugtrack/cmd/identity"
)

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// DevUserStore is what the development auto-authenticator needs.
type DevUserStore interface {
	GetUserByEmail(ctx context.Context, email string) (identity.User, error)
	CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error)
}

// UserStore is the full store surface a Pipeline uses.
type UserStore interface {
	UserLookup
	DevUserStore
}

// TokenVerifier is satisfied by *token.Codec.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (string, error)
}

// TokenIssuer is satisfied by *token.Codec.
type TokenIssuer interface {
	Issue(userID string, now time.Time) (string, time.Time, error)
}

// TokenCodec issues and verifies tokens.
type TokenCodec interface {
	TokenVerifier
	TokenIssuer
}
