package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a minimal denylist of trivial passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline cost and policy for account passwords.
func DefaultConfig() Config {
	// Parallelism follows the host but is clamped to [1..4] so containers stay predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// envOverride applies one environment variable onto cfg.
type envOverride struct {
	key   string
	apply func(cfg *Config, raw string) error
}

var envOverrides = []envOverride{
	{"BUGTRACK_PASSWORD_MIN_LEN", func(c *Config, v string) error {
		n, err := atoiPositiveInt(v, 1, 1024)
		c.Policy.MinLength = n
		return err
	}},
	{"BUGTRACK_PASSWORD_MAX_LEN", func(c *Config, v string) error {
		n, err := atoiPositiveInt(v, 1, 4096)
		c.Policy.MaxLength = n
		return err
	}},
	{"BUGTRACK_PASSWORD_REJECT_VERY_WEAK", func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Policy.RejectVeryWeak = b
		return err
	}},
	{"BUGTRACK_ARGON2_MEMORY_KIB", func(c *Config, v string) error {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		c.Params.MemoryKiB = u
		return err
	}},
	{"BUGTRACK_ARGON2_ITERATIONS", func(c *Config, v string) error {
		u, err := atou32(v, 1, 20)
		c.Params.Iterations = u
		return err
	}},
	{"BUGTRACK_ARGON2_PARALLELISM", func(c *Config, v string) error {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return err
		}
		p, err := u32ToU8(u)
		c.Params.Parallelism = p
		return err
	}},
	{"BUGTRACK_ARGON2_SALT_LEN", func(c *Config, v string) error {
		u, err := atou32(v, 8, 64)
		c.Params.SaltLength = u
		return err
	}},
	{"BUGTRACK_ARGON2_KEY_LEN", func(c *Config, v string) error {
		u, err := atou32(v, 16, 64)
		c.Params.KeyLength = u
		return err
	}},
}

// FromEnv loads DefaultConfig and applies any BUGTRACK_PASSWORD_* / BUGTRACK_ARGON2_*
// overrides. A present but invalid value is an error, never a silent default.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok {
			continue
		}
		next := cfg
		if err := o.apply(&next, v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", o.key, err)
		}
		cfg = next
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean")
	}
}
