package bugs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("bug not found")
	ErrInvalidInput = errors.New("invalid bug input")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
