package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bugtrack/cmd/identity"
)

// Authenticator turns a bearer token into an attached identity.
type Authenticator struct {
	users  UserLookup
	tokens TokenVerifier
	now    func() time.Time
	log    *slog.Logger
}

// NewAuthenticator builds an Authenticator. log may be nil.
func NewAuthenticator(users UserLookup, tokens TokenVerifier, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		users:  users,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// Authenticate resolves r's identity in a single pass:
//
//  1. an identity already attached to the request state wins;
//  2. otherwise the bearer token is verified and its subject looked up;
//  3. the resolved user is attached to the request state.
//
// Every failure to establish an identity is ErrUnauthenticated. A store failure
// other than "not found" is returned as-is so callers can report a server error.
func (a *Authenticator) Authenticate(r *http.Request) (identity.User, error) {
	st := StateFromContext(r.Context())
	if st == nil {
		return identity.User{}, ErrNoRequestState
	}
	if u, ok := st.Identity(); ok {
		recordDecision("bearer", "already_attached")
		return u, nil
	}

	raw := BearerToken(r)
	if raw == "" {
		recordDecision("bearer", "missing")
		return identity.User{}, ErrUnauthenticated
	}

	userID, err := a.tokens.Verify(raw, a.now())
	if err != nil {
		recordDecision("bearer", "invalid_token")
		a.log.Debug("auth.token.rejected", "path", r.URL.Path)
		return identity.User{}, ErrUnauthenticated
	}

	u, err := a.users.GetUserByID(r.Context(), userID)
	if err != nil {
		if identity.IsNotFound(err) {
			recordDecision("bearer", "unknown_user")
			a.log.Debug("auth.token.unknown_user", "user_id", userID)
			return identity.User{}, ErrUnauthenticated
		}
		recordDecision("bearer", "error")
		return identity.User{}, fmt.Errorf("auth: lookup user: %w", err)
	}

	if !st.attach(u) {
		// Lost a race with another attach; the first identity stands.
		u, _ = st.Identity()
	}
	recordDecision("bearer", "accepted")
	return u, nil
}
