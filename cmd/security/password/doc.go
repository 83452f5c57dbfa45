// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are PHC-style strings ($argon2id$v=19$m=...,t=...,p=...$salt$key).
// Parameters and the length policy come from DefaultConfig, optionally tightened
// or relaxed through BUGTRACK_PASSWORD_* and BUGTRACK_ARGON2_* variables.
//
// Stored hashes are untrusted input: Verify rejects malformed strings and
// parameter sets far above the configured cost.
package password
