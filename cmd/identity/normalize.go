package identity

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxUsernameRunes = 64
	maxEmailBytes    = 254
)

// NormalizeUsername canonicalizes a username for uniqueness checks (trim + lower-case).
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail canonicalizes an email for lookups and uniqueness checks.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateCreate trims the input in place and rejects unusable values.
func validateCreate(op string, in *CreateUserInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if in.Username == "" {
		return invalid(op, "username is required")
	}
	if utf8.RuneCountInString(in.Username) > maxUsernameRunes {
		return invalid(op, "username too long")
	}
	if strings.ContainsAny(in.Username, " \t\r\n") {
		return invalid(op, "username must not contain whitespace")
	}

	if in.Email == "" {
		return invalid(op, "email is required")
	}
	if len(in.Email) > maxEmailBytes {
		return invalid(op, "email too long")
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return invalid(op, "email is malformed")
	}

	if in.Password == "" {
		return invalid(op, "password is required")
	}
	return nil
}
