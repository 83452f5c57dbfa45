package token

import (
	"os"
	"strings"
)

const (
	// SecretEnvKey is the env var holding the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "JWT_SECRET"

	// DevFallbackSecret signs tokens in non-production runs without JWT_SECRET.
	// #nosec G101 -- intentionally public development value.
	DevFallbackSecret = "bugtrack-dev-insecure-secret"

	// MinProductionSecretBytes is the minimum HMAC-SHA256 key size accepted in production.
	MinProductionSecretBytes = 32
)

// SecretFromEnv returns the signing secret from JWT_SECRET.
//
// In production the secret is mandatory and must be at least
// MinProductionSecretBytes long. Outside production a missing secret falls back
// to DevFallbackSecret.
func SecretFromEnv(production bool) ([]byte, error) {
	return ResolveSecret(os.Getenv(SecretEnvKey), production)
}

// ResolveSecret applies the same policy as SecretFromEnv to an explicit value.
func ResolveSecret(raw string, production bool) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if production {
			return nil, ErrSecretMissing
		}
		return []byte(DevFallbackSecret), nil
	}
	// Bytes, not runes: the key is used raw.
	if production && len(raw) < MinProductionSecretBytes {
		return nil, ErrSecretTooShort
	}
	return []byte(raw), nil
}
