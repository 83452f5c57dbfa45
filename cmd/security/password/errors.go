package password

import "errors"

// Policy and hash errors. Policy errors carry user-facing text.
var (
	ErrPasswordTooShort      = errors.New("password too short")
	ErrPasswordTooLong       = errors.New("password too long")
	ErrWeakPassword          = errors.New("password is too easy to guess")
	ErrPasswordHasIdentifier = errors.New("password must not contain the username or email")
	ErrInvalidHash           = errors.New("invalid password hash")
)

// IsPolicyError reports whether err is a policy rejection (as opposed to a
// hashing or encoding failure).
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrPasswordHasIdentifier)
}
