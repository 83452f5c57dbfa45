package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"bugtrack/cmd/identity/ids"
)

// MemoryStore is an in-process Store used in development mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	hasher  PasswordHasher
	byID    map[string]memoryUser
	byEmail map[string]string // email_norm -> id
	byName  map[string]string // username_norm -> id
}

type memoryUser struct {
	user User
	hash string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryHasher overrides the password hasher (tests use cheap Argon2 params).
func WithMemoryHasher(h PasswordHasher) MemoryOption {
	return func(s *MemoryStore) { s.hasher = h }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]memoryUser),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateUser hashes the password outside the lock, then inserts atomically.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validateCreate(op, &in); err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash, err := s.hasher.Hash(op, in.Password, accountIdentifiers(in)...)
	if err != nil {
		return User{}, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Username:     in.Username,
		UsernameNorm: NormalizeUsername(in.Username),
		Email:        in.Email,
		EmailNorm:    NormalizeEmail(in.Email),
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[u.UsernameNorm]; ok {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if _, ok := s.byEmail[u.EmailNorm]; ok {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	s.byID[u.ID] = memoryUser{user: u, hash: hash}
	s.byName[u.UsernameNorm] = u.ID
	s.byEmail[u.EmailNorm] = u.ID
	return u, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: op, By: "id"}
	}
	return rec.user, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	ua, err := s.lookupEmail(ctx, "identity.GetUserByEmail", email)
	return ua.User, err
}

func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.lookupEmail(ctx, "identity.GetUserAuthByEmail", email)
}

func (s *MemoryStore) lookupEmail(ctx context.Context, op, email string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, By: "email"}
	}
	rec := s.byID[id]
	return UserAuth{User: rec.user, PasswordHash: rec.hash}, nil
}

var _ Store = (*MemoryStore)(nil)
