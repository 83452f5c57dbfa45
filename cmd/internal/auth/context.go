package auth

import (
	"context"
	"sync"

	"bugtrack/cmd/identity"
)

// RequestState is the per-request authentication slot. The identity is set at
// most once; later attach attempts are ignored.
type RequestState struct {
	mu       sync.Mutex
	identity *identity.User
}

// Identity returns the attached identity, if any.
func (s *RequestState) Identity() (identity.User, bool) {
	if s == nil {
		return identity.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return identity.User{}, false
	}
	return *s.identity, true
}

// attach stores u unless an identity is already present. It reports whether u
// was stored.
func (s *RequestState) attach(u identity.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil {
		return false
	}
	s.identity = &u
	return true
}

type stateKey struct{}

// WithRequestState returns ctx carrying a fresh RequestState, or ctx unchanged
// when one is already present.
func WithRequestState(ctx context.Context) (context.Context, *RequestState) {
	if st := StateFromContext(ctx); st != nil {
		return ctx, st
	}
	st := &RequestState{}
	return context.WithValue(ctx, stateKey{}, st), st
}

// StateFromContext returns the request's RequestState or nil.
func StateFromContext(ctx context.Context) *RequestState {
	if v, ok := ctx.Value(stateKey{}).(*RequestState); ok {
		return v
	}
	return nil
}

// IdentityFromContext returns the identity attached to the request, if any.
func IdentityFromContext(ctx context.Context) (identity.User, bool) {
	return StateFromContext(ctx).Identity()
}
