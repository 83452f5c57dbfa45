package identity

import (
	"testing"

	"bugtrack/cmd/security/password"
)

// cheapHasher keeps Argon2 fast in tests.
func cheapHasher(t *testing.T) PasswordHasher {
	t.Helper()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return NewPasswordHasher(cfg)
}
