// Package token issues and verifies the bearer tokens used by the bugtrack API.
//
// Tokens are HS256 JWTs carrying {id, iat, exp}. They are stateless: there is no
// server-side session table and no revocation; a token dies when it expires.
//
// Every verification failure (malformed input, foreign signature, wrong
// algorithm, expiry, missing id) collapses into ErrInvalidToken so callers cannot
// tell forged tokens apart from stale ones.
//
// Environment:
//   - JWT_SECRET: shared signing secret. Outside production an insecure literal
//     fallback is used when unset; production must configure it (see SecretFromEnv).
package token
