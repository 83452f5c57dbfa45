package app

import (
	"errors"
	"fmt"
	"slices"

	"bugtrack/cmd/security/token"
)

// ValidateSecurityConfig enforces bugtrack's security policy at startup.
//
// Production runs refuse to start without a strong JWT_SECRET, with the feed's
// origin check disabled, or with credentialed CORS open to every origin.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.Production() {
		return nil
	}

	if _, err := token.ResolveSecret(cfg.JWTSecret, true); err != nil {
		switch {
		case errors.Is(err, token.ErrSecretMissing):
			return fmt.Errorf("%w: production requires %s", errConfig, token.SecretEnvKey)
		case errors.Is(err, token.ErrSecretTooShort):
			return fmt.Errorf("%w: %s is too short (min %d bytes)", errConfig, token.SecretEnvKey, token.MinProductionSecretBytes)
		default:
			return err
		}
	}

	if cfg.Feed.InsecureSkipVerify {
		return fmt.Errorf("%w: BUGTRACK_FEED_INSECURE_SKIP_VERIFY must be false in production", errConfig)
	}
	if cfg.CORSAllowCredentials && slices.Contains(cfg.CORSAllowedOrigins, "*") {
		return fmt.Errorf("%w: credentialed CORS cannot allow origin *", errConfig)
	}
	return nil
}
