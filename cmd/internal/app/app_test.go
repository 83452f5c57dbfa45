package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bugtrack/cmd/identity"
	"bugtrack/cmd/security/password"
)

const testSecret = "app-test-secret-app-test-secret-app-test"

func cheapHasher() identity.PasswordHasher {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return identity.NewPasswordHasher(cfg)
}

func newTestServer(t *testing.T, env string) *httptest.Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Env = env
	cfg.JWTSecret = testSecret

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log, WithPasswordHasher(cheapHasher()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type apiClient struct {
	t    *testing.T
	base string
}

func (c apiClient) do(method, path, bearer string, body any) (int, []byte) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

type authResult struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Token string `json:"token"`
}

type bugResult struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Status string `json:"status"`
}

func (c apiClient) register(name string) authResult {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "correct-horse-battery",
	})
	if code != http.StatusCreated {
		c.t.Fatalf("register %s: %d %s", name, code, body)
	}
	var res authResult
	if err := json.Unmarshal(body, &res); err != nil {
		c.t.Fatalf("decode register: %v", err)
	}
	return res
}

func (c apiClient) createBug(bearer, title string) bugResult {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/bugs", bearer, map[string]string{
		"title":   title,
		"content": "details",
	})
	if code != http.StatusCreated {
		c.t.Fatalf("create bug: %d %s", code, body)
	}
	var b bugResult
	if err := json.Unmarshal(body, &b); err != nil {
		c.t.Fatalf("decode bug: %v", err)
	}
	return b
}

func TestScenario_CreateAuthorIsTokenSubject(t *testing.T) {
	t.Parallel()
	c := apiClient{t: t, base: newTestServer(t, "production").URL}

	u := c.register("ursula")
	bug := c.createBug(u.Token, "crash on save")
	if bug.Author != u.User.ID {
		t.Fatalf("author=%q, want %q", bug.Author, u.User.ID)
	}
}

func TestScenario_NonOwnerUpdateForbidden(t *testing.T) {
	t.Parallel()
	c := apiClient{t: t, base: newTestServer(t, "production").URL}

	u := c.register("umar")
	v := c.register("vera")
	bug := c.createBug(u.Token, "owned by u")

	code, _ := c.do(http.MethodPut, "/api/bugs/"+bug.ID, v.Token, map[string]string{"status": "resolved"})
	if code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", code)
	}
}

func TestScenario_ProductionDeleteWithoutHeader(t *testing.T) {
	t.Parallel()
	c := apiClient{t: t, base: newTestServer(t, "production").URL}

	u := c.register("uma")
	bug := c.createBug(u.Token, "to delete")

	code, body := c.do(http.MethodDelete, "/api/bugs/"+bug.ID, "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", code)
	}
	if !strings.Contains(string(body), `"unauthenticated"`) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestScenario_DevAutoAuthStillEnforcesOwnership(t *testing.T) {
	t.Parallel()
	c := apiClient{t: t, base: newTestServer(t, "development").URL}

	// Created without a header: owned by the development identity.
	devBug := c.createBug("", "dev-owned")
	code, body := c.do(http.MethodPut, "/api/bugs/"+devBug.ID, "", map[string]string{"status": "in-progress"})
	if code != http.StatusOK {
		t.Fatalf("dev update own bug: %d %s", code, body)
	}
	var updated bugResult
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Status != "in-progress" {
		t.Fatalf("status=%q", updated.Status)
	}

	// Someone else's bug stays protected under auto-auth.
	other := c.register("otto")
	otherBug := c.createBug(other.Token, "not yours")
	code, _ = c.do(http.MethodPut, "/api/bugs/"+otherBug.ID, "", map[string]string{"status": "resolved"})
	if code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", code)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, "development")
	c := apiClient{t: t, base: ts.URL}

	if code, body := c.do(http.MethodGet, "/healthz", "", nil); code != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	if code, _ := c.do(http.MethodGet, "/readyz", "", nil); code != http.StatusOK {
		t.Fatalf("readyz: %d", code)
	}

	_, _ = c.do(http.MethodGet, "/api/bugs", "", nil)
	code, body := c.do(http.MethodGet, "/metrics", "", nil)
	if code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}
	if !strings.Contains(string(body), "bugtrack_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, "development")

	resp, err := http.Get(ts.URL + "/api/bugs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()

	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("missing %s", RequestIDHeader)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff")
	}
}

func TestNew_ProductionRequiresStrongSecret(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Env = "production"
	cfg.JWTSecret = "short"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(context.Background(), cfg, log); err == nil {
		t.Fatalf("expected startup failure for short secret")
	}
}

func TestNew_RejectsUnusableDevUser(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "password123", mutate: func(c *Config) { c.DevUserPassword = "password123" }},
		{name: "short password", mutate: func(c *Config) { c.DevUserPassword = "short" }},
		{name: "password embeds username", mutate: func(c *Config) {
			c.DevUserName = "tracker"
			c.DevUserPassword = "tracker-secret-99"
		}},
		{name: "malformed email", mutate: func(c *Config) { c.DevUserEmail = "not-an-email" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.Env = "development"
			cfg.JWTSecret = testSecret
			tc.mutate(&cfg)

			log := slog.New(slog.NewTextHandler(io.Discard, nil))
			_, err := New(context.Background(), cfg, log, WithPasswordHasher(cheapHasher()))
			if err == nil {
				t.Fatal("expected startup failure")
			}
			if !identity.IsInvalidInput(err) || !strings.Contains(err.Error(), "BUGTRACK_DEV_USER_") {
				t.Fatalf("err=%v", err)
			}
		})
	}

	t.Run("production ignores dev user", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Env = "production"
		cfg.JWTSecret = testSecret
		cfg.DevUserPassword = "password123"

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		a, err := New(context.Background(), cfg, log, WithPasswordHasher(cheapHasher()))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		a.Close()
	})
}

func TestValidateSecurityConfig(t *testing.T) {
	t.Parallel()

	strong := strings.Repeat("s", 32)
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "development without secret", mutate: func(c *Config) {}, wantErr: false},
		{name: "production missing secret", mutate: func(c *Config) { c.Env = "production" }, wantErr: true},
		{name: "production short secret", mutate: func(c *Config) { c.Env = "production"; c.JWTSecret = "short" }, wantErr: true},
		{name: "production strong secret", mutate: func(c *Config) { c.Env = "production"; c.JWTSecret = strong }, wantErr: false},
		{name: "production insecure feed", mutate: func(c *Config) {
			c.Env = "production"
			c.JWTSecret = strong
			c.Feed.InsecureSkipVerify = true
		}, wantErr: true},
		{name: "production credentialed wildcard cors", mutate: func(c *Config) {
			c.Env = "Production"
			c.JWTSecret = strong
			c.CORSAllowCredentials = true
			c.CORSAllowedOrigins = []string{"*"}
		}, wantErr: true},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := ValidateSecurityConfig(cfg)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bugtrack.yaml")
	yml := `
env: production
http_addr: 127.0.0.1:9000
log_format: pretty
cors_allowed_origins: ["https://bugs.example.com"]
auth:
  login_ip_max: 7
  login_ip_window: 2m
feed:
  allowed_origins: ["https://bugs.example.com"]
  heartbeat_interval: 10s
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv(ConfigPathEnv, path)
	t.Setenv("BUGTRACK_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BUGTRACK_AUTH_LOGIN_IP_MAX", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Production() {
		t.Fatalf("expected production env from yaml")
	}
	if cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("env must override yaml, got %q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "pretty" || cfg.JWTSecret != "from-env" {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if cfg.Auth.LoginIPMax != 7 || cfg.Auth.LoginIPWindow != 2*time.Minute {
		t.Fatalf("auth overlay not applied: %+v", cfg.Auth)
	}
	if cfg.Feed.HeartbeatInterval != 10*time.Second || len(cfg.Feed.AllowedOrigins) != 1 {
		t.Fatalf("feed overlay not applied: %+v", cfg.Feed)
	}
	// Untouched keys keep their defaults.
	if cfg.ShutdownTimeout != 10*time.Second || !cfg.Auth.RegistrationOpen {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http_addr: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(ConfigPathEnv, path)

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}
