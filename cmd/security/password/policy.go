package password

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minIdentifierRunes is the shortest identifier checked for containment;
// shorter ones ("qa", "bob") match too many legitimate passwords.
const minIdentifierRunes = 4

var trivialPasswords = []string{
	"password", "password1", "password123", "passw0rd",
	"123456", "12345678", "123456789", "1234567890",
	"qwerty", "qwerty123", "letmein", "iloveyou", "11111111",
	"changeme", "bugtracker",
}

// Validate checks password against the length and strength policy.
func (c Config) Validate(password string) error {
	return c.ValidateFor(password)
}

// ValidateFor is Validate plus a check that password does not embed any of
// identifiers (username, email local part). Identifiers are compared
// case-insensitively.
func (c Config) ValidateFor(password string, identifiers ...string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && isTrivial(password) {
		return ErrWeakPassword
	}

	lower := strings.ToLower(password)
	for _, id := range identifiers {
		id = strings.ToLower(strings.TrimSpace(id))
		if utf8.RuneCountInString(id) < minIdentifierRunes {
			continue
		}
		if strings.Contains(lower, id) {
			return ErrPasswordHasIdentifier
		}
	}
	return nil
}

// EmailLocalPart returns the part of email before the last '@'.
func EmailLocalPart(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// isTrivial flags repeated single characters, short all-digit PINs and a
// small denylist.
func isTrivial(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	if utf8.RuneCountInString(s) < 12 && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return true
	}

	return slices.Contains(trivialPasswords, strings.ToLower(s))
}
