package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// phcVersion is argon2.Version (0x13).
const phcVersion = argon2.Version

var b64 = base64.RawStdEncoding

// phc is a decoded $argon2id$v=19$m=<KiB>,t=<iter>,p=<par>$<salt>$<key> string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		p.params.MemoryKiB, p.params.Iterations, p.params.Parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(phcVersion) {
		return phc{}, ErrInvalidHash
	}

	var p phc
	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch name {
		case "m":
			p.params.MemoryKiB = uint32(n)
		case "t":
			p.params.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return phc{}, ErrInvalidHash
			}
			p.params.Parallelism = uint8(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if p.params.MemoryKiB == 0 || p.params.Iterations == 0 || p.params.Parallelism == 0 {
		return phc{}, ErrInvalidHash
	}

	var err error
	if p.salt, err = b64.DecodeString(parts[4]); err != nil {
		return phc{}, ErrInvalidHash
	}
	if p.key, err = b64.DecodeString(parts[5]); err != nil {
		return phc{}, ErrInvalidHash
	}
	p.params.SaltLength = uint32(len(p.salt)) // #nosec G115 -- bounded by the encoded string length.
	p.params.KeyLength = uint32(len(p.key))   // #nosec G115 -- bounded by the encoded string length.
	return p, nil
}

func derive(plain string, salt []byte, params Argon2idParams) []byte {
	return argon2.IDKey([]byte(plain), salt, params.Iterations, params.MemoryKiB, params.Parallelism, params.KeyLength)
}

// Hash validates plain and returns its Argon2id PHC string.
func (c Config) Hash(plain string) (string, error) {
	return c.HashFor(plain)
}

// HashFor is Hash with ValidateFor's identifier check.
func (c Config) HashFor(plain string, identifiers ...string) (string, error) {
	if err := c.ValidateFor(plain, identifiers...); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return phc{params: c.Params, salt: salt, key: derive(plain, salt, c.Params)}.String(), nil
}

// Verify reports whether plain matches encoded. A malformed hash, or one whose
// cost is far above the configured parameters, yields ErrInvalidHash.
func (c Config) Verify(encoded, plain string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if !c.acceptable(p.params) {
		return false, ErrInvalidHash
	}
	got := derive(plain, p.salt, p.params)
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the configured ones. Malformed hashes always need a rehash.
func (c Config) NeedsRehash(encoded string) bool {
	p, err := parsePHC(encoded)
	return err != nil || p.params != c.Params
}

// acceptable lets older, cheaper hashes verify but refuses parameter sets more
// than twice the configured cost.
func (c Config) acceptable(got Argon2idParams) bool {
	limit := c.Params
	return got.MemoryKiB <= limit.MemoryKiB*2 &&
		got.Iterations <= limit.Iterations*2 &&
		got.Parallelism <= limit.Parallelism*2 &&
		got.SaltLength >= 8 && got.SaltLength <= 64 &&
		got.KeyLength >= 16 && got.KeyLength <= 128
}
