package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the API layer maps them to
// 400, 404 and 409.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)

// OpError is a failed store operation of a given Kind. Msg is safe to show to
// the client and never carries secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	s := e.Op + ": " + e.Kind.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e OpError) Unwrap() error { return e.Kind }

// ConflictError is a unique-constraint hit on Field ("username" or "email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s taken", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError is a user lookup that matched nothing. By names the lookup
// key ("id" or "email"); the key's value is deliberately not recorded.
type NotFoundError struct {
	Op string
	By string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v: no user with that %s", e.Op, ErrNotFound, e.By)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// ConflictField returns the conflicting field, or "" when err carries none.
func ConflictField(err error) string {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}
