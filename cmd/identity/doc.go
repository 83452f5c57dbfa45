// Package identity owns bugtrack's user records.
//
// It provides the User model, input normalization, Argon2id password handling
// (delegated to cmd/security/password) and the Store boundary with in-memory and
// PostgreSQL implementations. Authentication decisions live in cmd/internal/auth;
// this package only answers "who is this id / email".
package identity
