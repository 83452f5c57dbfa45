package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/internal/auth"
	"bugtrack/cmd/internal/httpjson"
)

// Handler serves registration, login and the current-identity endpoint.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	hasher   identity.PasswordHasher
	tokens   auth.TokenIssuer
	pipeline *auth.Pipeline

	ipFailures    *failureLog
	emailFailures *failureLog

	now       func() time.Time
	dummyHash string
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithPasswordHasher sets the hasher used to check login passwords. It must
// match the one the user store hashes with.
func WithPasswordHasher(hasher identity.PasswordHasher) HandlerOption {
	return func(h *Handler) { h.hasher = hasher }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs the auth API. pipeline guards /api/auth/me.
func NewHandler(log *slog.Logger, users identity.Store, tokens auth.TokenIssuer, pipeline *auth.Pipeline, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if users == nil {
		return nil, errors.New("authapi: nil user store")
	}
	if tokens == nil {
		return nil, errors.New("authapi: nil token issuer")
	}
	if pipeline == nil {
		return nil, errors.New("authapi: nil auth pipeline")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:           log,
		cfg:           cfg,
		users:         users,
		tokens:        tokens,
		pipeline:      pipeline,
		ipFailures:    newFailureLog(cfg.LoginIPMax, cfg.LoginIPWindow),
		emailFailures: newFailureLog(cfg.LoginEmailMax, cfg.LoginEmailWindow),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := h.hasher.Hash("authapi.dummy", "dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	} else {
		log.Warn("auth.login.dummy_hash.fail", "err", err)
	}

	return h, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.Handle("GET /api/auth/me", h.pipeline.RequireFunc(h.handleMe))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.RegistrationOpen {
		httpjson.Error(w, http.StatusForbidden, "registration_closed", "registration is disabled")
		return
	}

	var req registerRequest
	if err := httpjson.Decode(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)

	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Now:         now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			field := identity.ConflictField(err)
			h.audit(ctx, actionRegisterConflict, ip, "field", field)
			httpjson.Error(w, http.StatusConflict, "conflict", conflictMessage(field))
		case identity.IsInvalidInput(err):
			httpjson.Error(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		default:
			h.log.Error("auth.register.fail", "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	tok, exp, err := h.tokens.Issue(user.ID, now)
	if err != nil {
		h.log.Error("auth.register.token.fail", "err", err, "user_id", user.ID)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.audit(ctx, actionRegister, ip, "user_id", user.ID)
	httpjson.Write(w, http.StatusCreated, authResponse{
		User:      toUserResponse(user),
		Token:     tok,
		ExpiresAt: exp,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}

	// Throttle before touching the store.
	if blocked, retryAfter := h.ipFailures.check(ipKey, now); blocked {
		h.audit(ctx, actionLoginRateLimited, ip, "scope", "ip")
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := h.emailFailures.check(email, now); blocked {
		h.audit(ctx, actionLoginRateLimited, ip, "scope", "email")
		writeRateLimited(w, retryAfter)
		return
	}

	fail := func(reason string) {
		h.ipFailures.record(ipKey, now)
		h.emailFailures.record(email, now)
		h.audit(ctx, actionLoginFailed, ip, "reason", reason)
		httpjson.Error(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	}

	ua, err := h.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = h.hasher.Verify(h.dummyHash, req.Password)
		}
		fail("not_found")
		return
	}

	ok, err := h.hasher.Verify(ua.PasswordHash, req.Password)
	if err != nil {
		h.log.Error("auth.login.verify.fail", "err", err, "user_id", ua.User.ID)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !ok {
		fail("bad_password")
		return
	}

	tok, exp, err := h.tokens.Issue(ua.User.ID, now)
	if err != nil {
		h.log.Error("auth.login.token.fail", "err", err, "user_id", ua.User.ID)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.emailFailures.reset(email)
	h.audit(ctx, actionLoginSuccess, ip, "user_id", ua.User.ID)
	httpjson.Write(w, http.StatusOK, authResponse{
		User:      toUserResponse(ua.User),
		Token:     tok,
		ExpiresAt: exp,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.WriteError(w, h.log, r, auth.ErrUnauthenticated)
		return
	}
	httpjson.Write(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

func conflictMessage(field string) string {
	if field == "" {
		return "account already exists"
	}
	return field + " already taken"
}

func invalidMessage(err error) string {
	var oe identity.OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return "invalid request"
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP returns the first parseable address (the original client)
// of an X-Forwarded-For list.
func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
