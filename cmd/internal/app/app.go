// Package app wires the bugtrack server runtime: config, logging, storage,
// the auth pipeline, HTTP routes and the realtime bug feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/internal/auth"
	authapi "bugtrack/cmd/internal/auth/api"
	"bugtrack/cmd/internal/bugs"
	bugsapi "bugtrack/cmd/internal/bugs/api"
	"bugtrack/cmd/internal/migrations"
	"bugtrack/cmd/internal/realtime"
	"bugtrack/cmd/security/token"
)

// App is the bugtrack server runtime: it owns storage, auth and HTTP wiring.
type App struct {
	cfg Config
	log Logger

	stores stores

	codec    *token.Codec
	pipeline *auth.Pipeline
	feed     *realtime.Feed
	gateway  *realtime.Gateway
	authAPI  *authapi.Handler
	bugsAPI  *bugsapi.Handler
}

// Option configures optional App dependencies.
type Option func(*appOptions)

type appOptions struct {
	hasher *identity.PasswordHasher
}

// WithPasswordHasher pins the password hasher shared by the user store and
// login (tests use cheap Argon2 parameters).
func WithPasswordHasher(h identity.PasswordHasher) Option {
	return func(o *appOptions) { o.hasher = &h }
}

// New constructs a fully wired App from cfg. It validates the security policy
// first so a misconfigured production process never serves a request.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var o appOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	hasher := identity.PasswordHasher{}
	if o.hasher != nil {
		hasher = *o.hasher
	}

	secret, err := token.ResolveSecret(cfg.JWTSecret, cfg.Production())
	if err != nil {
		return nil, err
	}
	if !cfg.Production() && cfg.JWTSecret == "" {
		log.Warn("auth.jwt.dev_fallback_secret")
	}
	codec, err := token.NewCodec(secret)
	if err != nil {
		return nil, err
	}

	devUser := auth.DevUser{
		Email:    cfg.DevUserEmail,
		Username: cfg.DevUserName,
		Password: cfg.DevUserPassword,
	}.WithDefaults()
	if !cfg.Production() {
		if err := checkDevUser(hasher, devUser); err != nil {
			return nil, err
		}
	}

	st, err := newStores(ctx, cfg, log, hasher)
	if err != nil {
		return nil, err
	}

	pipeline, err := auth.NewPipeline(auth.PipelineConfig{
		Production: cfg.Production(),
		DevUser:    devUser,
	}, st.users, codec, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	feed := realtime.NewFeed(log)
	gateway := realtime.NewGateway(log, feed, cfg.Feed)

	authHandler, err := authapi.NewHandler(log, st.users, codec, pipeline, cfg.Auth,
		authapi.WithPasswordHasher(hasher))
	if err != nil {
		st.Close()
		return nil, err
	}
	bugsHandler, err := bugsapi.NewHandler(log, st.bugs, pipeline,
		bugsapi.WithBroadcaster(feed))
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		stores:   st,
		codec:    codec,
		pipeline: pipeline,
		feed:     feed,
		gateway:  gateway,
		authAPI:  authHandler,
		bugsAPI:  bugsHandler,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return chain(mux, a.cfg, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"db_enabled", a.stores.pool != nil,
		"dev_auth", a.pipeline.DevEnabled(),
		"base_url", base,
		"feed_url", wsBaseURL(base)+feedPath,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.stores.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	// Websocket connections are hijacked and not tracked by Shutdown.
	srv.RegisterOnShutdown(a.gateway.CloseAll)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.stores.Close()
		return err
	}

	a.stores.Close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases storage resources without running the server.
func (a *App) Close() { a.stores.Close() }

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// checkDevUser rejects a development identity the user store would refuse to
// create, so the failure surfaces at startup instead of on the first request.
func checkDevUser(hasher identity.PasswordHasher, u auth.DevUser) error {
	err := hasher.CheckAccount("app.dev_user", identity.CreateUserInput{
		Username: u.Username,
		Email:    u.Email,
		Password: u.Password,
	})
	if err != nil {
		return fmt.Errorf("invalid development user (BUGTRACK_DEV_USER_*): %w", err)
	}
	return nil
}

// stores holds the persistence backends. pool is nil in in-memory mode.
type stores struct {
	users identity.Store
	bugs  bugs.Store
	pool  *pgxpool.Pool
}

func (s stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// newStores picks Postgres when a database URL is configured and in-memory
// storage otherwise.
func newStores(ctx context.Context, cfg Config, log Logger, hasher identity.PasswordHasher) (stores, error) {
	if cfg.DatabaseURL == "" {
		if cfg.Production() {
			log.Warn("db.disabled.inmemory_store", "env", cfg.Env)
		} else {
			log.Info("db.disabled.inmemory_store")
		}
		return stores{
			users: identity.NewMemoryStore(identity.WithMemoryHasher(hasher)),
			bugs:  bugs.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, fmt.Errorf("db: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, pool, cfg.DBSchema, log); err != nil {
			pool.Close()
			return stores{}, err
		}
	}

	users, err := identity.NewPostgresStore(pool,
		identity.WithSchema(cfg.DBSchema),
		identity.WithPasswordHasher(hasher))
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	bugStore, err := bugs.NewPostgresStore(pool, bugs.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return stores{}, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema, "auto_migrate", cfg.AutoMigrate)
	return stores{users: users, bugs: bugStore, pool: pool}, nil
}
