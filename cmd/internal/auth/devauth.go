package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bugtrack/cmd/identity"
)

// Development identity defaults.
const (
	DefaultDevEmail    = "dev@example.com"
	DefaultDevUsername = "devuser"
	// #nosec G101 -- well-known development credential, never used in production.
	DefaultDevPassword = "dev-password-123"
)

// DevUser configures the development identity.
type DevUser struct {
	Email    string
	Username string
	Password string
}

// WithDefaults fills empty fields.
func (d DevUser) WithDefaults() DevUser {
	if strings.TrimSpace(d.Email) == "" {
		d.Email = DefaultDevEmail
	}
	if strings.TrimSpace(d.Username) == "" {
		d.Username = DefaultDevUsername
	}
	if d.Password == "" {
		d.Password = DefaultDevPassword
	}
	return d
}

// DevAuthenticator attaches the development identity to requests that carry no
// bearer token. It is only ever constructed for non-production pipelines.
type DevAuthenticator struct {
	users  DevUserStore
	tokens TokenIssuer
	user   DevUser
	now    func() time.Time
	log    *slog.Logger
}

// NewDevAuthenticator builds a DevAuthenticator. log may be nil.
func NewDevAuthenticator(users DevUserStore, tokens TokenIssuer, user DevUser, log *slog.Logger) *DevAuthenticator {
	if log == nil {
		log = slog.Default()
	}
	return &DevAuthenticator{
		users:  users,
		tokens: tokens,
		user:   user.WithDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// Apply attaches the development identity when r has no bearer token, then
// best-effort stamps "Authorization: Bearer <token>" onto r. Token minting
// failures are logged and swallowed; identity resolution failures are returned.
func (d *DevAuthenticator) Apply(r *http.Request) error {
	if hasBearer(r) {
		recordDecision("dev", "skipped_bearer")
		return nil
	}
	st := StateFromContext(r.Context())
	if st == nil {
		return ErrNoRequestState
	}
	if _, ok := st.Identity(); ok {
		return nil
	}

	u, err := d.EnsureUser(r.Context())
	if err != nil {
		recordDecision("dev", "error")
		return err
	}
	st.attach(u)
	recordDecision("dev", "attached")

	tok, _, err := d.tokens.Issue(u.ID, d.now())
	if err != nil {
		d.log.Warn("auth.dev.token.mint_failed", "user_id", u.ID, "err", err)
		return nil
	}
	r.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// EnsureUser returns the development user, creating it on first use.
//
// Lookup and create are not atomic. Two concurrent first requests may both miss
// the lookup; the store's unique email constraint lets exactly one create win and
// the loser re-reads the winner's row.
func (d *DevAuthenticator) EnsureUser(ctx context.Context) (identity.User, error) {
	u, err := d.users.GetUserByEmail(ctx, d.user.Email)
	if err == nil {
		return u, nil
	}
	if !identity.IsNotFound(err) {
		return identity.User{}, fmt.Errorf("auth: resolve dev user: %w", err)
	}

	u, err = d.users.CreateUser(ctx, identity.CreateUserInput{
		Username:    d.user.Username,
		Email:       d.user.Email,
		DisplayName: d.user.Username,
		Password:    d.user.Password,
		Now:         d.now(),
	})
	if err == nil {
		d.log.Info("auth.dev.identity.created", "user_id", u.ID, "email", u.Email)
		return u, nil
	}
	if !identity.IsConflict(err) {
		return identity.User{}, fmt.Errorf("auth: create dev user: %w", err)
	}

	d.log.Warn("auth.dev.identity.create_race", "email", d.user.Email, "field", identity.ConflictField(err))
	u, err = d.users.GetUserByEmail(ctx, d.user.Email)
	if err != nil {
		return identity.User{}, fmt.Errorf("auth: resolve dev user after conflict: %w", err)
	}
	return u, nil
}
