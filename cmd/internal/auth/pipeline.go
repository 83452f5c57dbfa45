package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"bugtrack/cmd/internal/httpjson"
)

// PipelineConfig is fixed at construction time.
type PipelineConfig struct {
	// Production disables the development auto-authenticator entirely.
	Production bool
	// DevUser overrides the development identity; ignored in production.
	DevUser DevUser
}

// Pipeline composes the optional DevAuthenticator and the Authenticator into
// HTTP middleware.
type Pipeline struct {
	dev   *DevAuthenticator
	authn *Authenticator
	log   *slog.Logger
}

// NewPipeline wires the auth components. In production the DevAuthenticator is
// never constructed.
func NewPipeline(cfg PipelineConfig, users UserStore, tokens TokenCodec, log *slog.Logger) (*Pipeline, error) {
	if users == nil {
		return nil, errors.New("auth: nil user store")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token codec")
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pipeline{
		authn: NewAuthenticator(users, tokens, log),
		log:   log,
	}
	if !cfg.Production {
		p.dev = NewDevAuthenticator(users, tokens, cfg.DevUser, log)
		log.Warn("auth.dev.enabled", "email", p.dev.user.Email)
	}
	return p, nil
}

// DevEnabled reports whether the development auto-authenticator is active.
func (p *Pipeline) DevEnabled() bool { return p.dev != nil }

// Dev returns the development auto-authenticator, or nil in production.
func (p *Pipeline) Dev() *DevAuthenticator { return p.dev }

// Authenticate runs the dev step (if enabled) and then the bearer step against
// r. r must carry a RequestState (see WithRequestState).
func (p *Pipeline) Authenticate(r *http.Request) error {
	if p.dev != nil {
		if err := p.dev.Apply(r); err != nil {
			return err
		}
	}
	_, err := p.authn.Authenticate(r)
	return err
}

// Require rejects requests that cannot be authenticated and otherwise calls
// next with the identity attached.
func (p *Pipeline) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := WithRequestState(r.Context())
		r = r.WithContext(ctx)

		if err := p.Authenticate(r); err != nil {
			WriteError(w, p.log, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFunc is Require for handler funcs.
func (p *Pipeline) RequireFunc(next http.HandlerFunc) http.Handler {
	return p.Require(next)
}

// WriteError maps auth errors onto the JSON error envelope: 401 for
// ErrUnauthenticated, 403 for ErrForbidden, 500 for anything else.
func WriteError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="bugtrack"`)
		httpjson.Error(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, ErrForbidden):
		httpjson.Error(w, http.StatusForbidden, "forbidden", "only the author may modify this bug")
	default:
		if log != nil {
			log.Error("auth.error", "path", r.URL.Path, "err", err)
		}
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
