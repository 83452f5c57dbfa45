package auth

import "errors"

var (
	// ErrUnauthenticated covers every failure to establish an identity.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means the caller is authenticated but not the resource owner.
	ErrForbidden = errors.New("access denied")

	// ErrNoRequestState means a handler ran outside the auth pipeline.
	ErrNoRequestState = errors.New("auth: request state missing")
)
