package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and abuse limits.
type Config struct {
	// RegistrationOpen allows POST /api/auth/register.
	RegistrationOpen bool  `yaml:"registration_open"`
	TrustProxy       bool  `yaml:"trust_proxy"`
	MaxBodyBytes     int64 `yaml:"max_body_bytes"`

	LoginIPMax    int           `yaml:"login_ip_max"`
	LoginIPWindow time.Duration `yaml:"login_ip_window"`

	LoginEmailMax    int           `yaml:"login_email_max"`
	LoginEmailWindow time.Duration `yaml:"login_email_window"`
}

// DefaultConfig returns the built-in auth API settings.
func DefaultConfig() Config {
	return Config{
		RegistrationOpen: true,
		TrustProxy:       false,
		MaxBodyBytes:     64 << 10,
		LoginIPMax:       20,
		LoginIPWindow:    5 * time.Minute,
		LoginEmailMax:    5,
		LoginEmailWindow: 15 * time.Minute,
	}
}

// LoadConfigFromEnv applies BUGTRACK_AUTH_* overrides onto base. Invalid values
// keep the base setting.
func LoadConfigFromEnv(base Config) Config {
	cfg := Config{
		RegistrationOpen: envBool("BUGTRACK_AUTH_REGISTRATION_OPEN", base.RegistrationOpen),
		TrustProxy:       envBool("BUGTRACK_AUTH_TRUST_PROXY", base.TrustProxy),
		MaxBodyBytes:     envInt64("BUGTRACK_AUTH_MAX_BODY_BYTES", base.MaxBodyBytes),
		LoginIPMax:       envInt("BUGTRACK_AUTH_LOGIN_IP_MAX", base.LoginIPMax),
		LoginIPWindow:    envDuration("BUGTRACK_AUTH_LOGIN_IP_WINDOW", base.LoginIPWindow),
		LoginEmailMax:    envInt("BUGTRACK_AUTH_LOGIN_EMAIL_MAX", base.LoginEmailMax),
		LoginEmailWindow: envDuration("BUGTRACK_AUTH_LOGIN_EMAIL_WINDOW", base.LoginEmailWindow),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = def.LoginIPWindow
	}
	if c.LoginEmailWindow <= 0 {
		c.LoginEmailWindow = def.LoginEmailWindow
	}
	return c
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
