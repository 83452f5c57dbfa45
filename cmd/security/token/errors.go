package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrInvalidToken is the only verification failure callers ever see.
	ErrInvalidToken = errors.New("invalid token")

	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")
)
