package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/security/password"
	"bugtrack/cmd/security/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore wraps a MemoryStore and counts calls.
type countingStore struct {
	*identity.MemoryStore
	byID    atomic.Int64
	byEmail atomic.Int64
	creates atomic.Int64
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()

	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return &countingStore{
		MemoryStore: identity.NewMemoryStore(identity.WithMemoryHasher(identity.NewPasswordHasher(cfg))),
	}
}

func (s *countingStore) GetUserByID(ctx context.Context, id string) (identity.User, error) {
	s.byID.Add(1)
	return s.MemoryStore.GetUserByID(ctx, id)
}

func (s *countingStore) GetUserByEmail(ctx context.Context, email string) (identity.User, error) {
	s.byEmail.Add(1)
	return s.MemoryStore.GetUserByEmail(ctx, email)
}

func (s *countingStore) CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error) {
	s.creates.Add(1)
	return s.MemoryStore.CreateUser(ctx, in)
}

func (s *countingStore) calls() int64 {
	return s.byID.Load() + s.byEmail.Load() + s.creates.Load()
}

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec([]byte("auth-test-secret-auth-test-secret-auth"))
	require.NoError(t, err)
	return c
}

func mustCreateUser(t *testing.T, s *countingStore, username string) identity.User {
	t.Helper()
	u, err := s.MemoryStore.CreateUser(context.Background(), identity.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "a-long-enough-password",
	})
	require.NoError(t, err)
	return u
}

func mustIssue(t *testing.T, c *token.Codec, userID string) string {
	t.Helper()
	tok, _, err := c.Issue(userID, time.Now().UTC())
	require.NoError(t, err)
	return tok
}

// newStatefulRequest returns a request whose context carries a RequestState.
func newStatefulRequest(method, target string) (*http.Request, *RequestState) {
	r := httptest.NewRequest(method, target, nil)
	ctx, st := WithRequestState(r.Context())
	return r.WithContext(ctx), st
}

// failingIssuer wraps a codec but refuses to mint.
type failingIssuer struct{ *token.Codec }

func (failingIssuer) Issue(string, time.Time) (string, time.Time, error) {
	return "", time.Time{}, errors.New("mint failed")
}

// brokenLookup fails every lookup with a non-auth error.
type brokenLookup struct{}

func (brokenLookup) GetUserByID(context.Context, string) (identity.User, error) {
	return identity.User{}, errors.New("connection reset")
}
