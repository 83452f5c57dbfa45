package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	authapi "bugtrack/cmd/internal/auth/api"
	"bugtrack/cmd/internal/realtime"
)

// ConfigPathEnv names an optional YAML file layered between defaults and env.
const ConfigPathEnv = "BUGTRACK_CONFIG"

// Config contains all runtime configuration.
//
// Precedence: built-in defaults, then the YAML file named by BUGTRACK_CONFIG,
// then BUGTRACK_* environment variables (and JWT_SECRET).
type Config struct {
	// Env is "development" or "production". Production disables the
	// development auto-authenticator and enforces the secret policy.
	Env string `yaml:"env"`

	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes"`

	DatabaseURL string `yaml:"database_url"`
	DBSchema    string `yaml:"db_schema"`
	DBMaxConns  int32  `yaml:"db_max_conns"`
	DBMinConns  int32  `yaml:"db_min_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `yaml:"readiness_require_db"`

	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
	CORSAllowCredentials bool     `yaml:"cors_allow_credentials"`
	CORSMaxAgeSeconds    int      `yaml:"cors_max_age_seconds"`

	// JWTSecret is read from JWT_SECRET only; it is never loaded from YAML.
	JWTSecret string `yaml:"-"`

	DevUserEmail    string `yaml:"dev_user_email"`
	DevUserName     string `yaml:"dev_user_name"`
	DevUserPassword string `yaml:"-"`

	Auth authapi.Config        `yaml:"auth"`
	Feed realtime.GatewayConfig `yaml:"feed"`
}

// Production reports whether the runtime runs with production guarantees.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Env:       "development",
		HTTPAddr:  "0.0.0.0:8080",
		LogLevel:  "info",
		LogFormat: "",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20,

		DBSchema:    "bugtrack",
		DBMaxConns:  10,
		DBMinConns:  0,
		AutoMigrate: true,

		CORSAllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		CORSMaxAgeSeconds:  600,

		Auth: authapi.DefaultConfig(),
		Feed: realtime.DefaultGatewayConfig(),
	}
}

// LoadConfig layers defaults, the optional YAML file and the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv(ConfigPathEnv)); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path.
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = EnvString("BUGTRACK_ENV", cfg.Env)

	cfg.HTTPAddr = EnvString("BUGTRACK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = EnvString("BUGTRACK_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvString("BUGTRACK_LOG_FORMAT", cfg.LogFormat)

	cfg.ReadHeaderTimeout = EnvDuration("BUGTRACK_HTTP_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = EnvDuration("BUGTRACK_HTTP_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = EnvDuration("BUGTRACK_HTTP_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = EnvDuration("BUGTRACK_HTTP_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = EnvDuration("BUGTRACK_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxHeaderBytes = EnvInt("BUGTRACK_HTTP_MAX_HEADER_BYTES", cfg.MaxHeaderBytes)

	cfg.DatabaseURL = EnvString("BUGTRACK_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBSchema = EnvString("BUGTRACK_DB_SCHEMA", cfg.DBSchema)
	cfg.DBMaxConns = EnvInt32("BUGTRACK_DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.DBMinConns = EnvInt32("BUGTRACK_DB_MIN_CONNS", cfg.DBMinConns)
	cfg.AutoMigrate = EnvBool("BUGTRACK_DB_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.ReadinessRequireDB = EnvBool("BUGTRACK_READINESS_REQUIRE_DB", cfg.ReadinessRequireDB)

	cfg.CORSAllowedOrigins = EnvList("BUGTRACK_CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.CORSAllowCredentials = EnvBool("BUGTRACK_CORS_ALLOW_CREDENTIALS", cfg.CORSAllowCredentials)
	cfg.CORSMaxAgeSeconds = EnvInt("BUGTRACK_CORS_MAX_AGE_SECONDS", cfg.CORSMaxAgeSeconds)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.DevUserEmail = EnvString("BUGTRACK_DEV_USER_EMAIL", cfg.DevUserEmail)
	cfg.DevUserName = EnvString("BUGTRACK_DEV_USER_NAME", cfg.DevUserName)
	cfg.DevUserPassword = EnvString("BUGTRACK_DEV_USER_PASSWORD", cfg.DevUserPassword)

	cfg.Auth = authapi.LoadConfigFromEnv(cfg.Auth)

	cfg.Feed.AllowedOrigins = EnvList("BUGTRACK_FEED_ALLOWED_ORIGINS", cfg.Feed.AllowedOrigins)
	cfg.Feed.OriginRequired = EnvBool("BUGTRACK_FEED_ORIGIN_REQUIRED", cfg.Feed.OriginRequired)
	cfg.Feed.InsecureSkipVerify = EnvBool("BUGTRACK_FEED_INSECURE_SKIP_VERIFY", cfg.Feed.InsecureSkipVerify)
	cfg.Feed.SendQueueSize = EnvInt("BUGTRACK_FEED_SEND_QUEUE", cfg.Feed.SendQueueSize)
	cfg.Feed.HeartbeatInterval = EnvDuration("BUGTRACK_FEED_HEARTBEAT_INTERVAL", cfg.Feed.HeartbeatInterval)
	cfg.Feed.RateEvents = EnvInt("BUGTRACK_FEED_RATE_EVENTS", cfg.Feed.RateEvents)
	cfg.Feed.RateWindow = EnvDuration("BUGTRACK_FEED_RATE_WINDOW", cfg.Feed.RateWindow)
}

// errConfig wraps a startup validation failure.
var errConfig = errors.New("invalid configuration")
