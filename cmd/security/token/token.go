package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Lifetime is the fixed validity window of every issued token.
const Lifetime = 2 * time.Hour

// claims mirrors the wire payload: {"id": "...", "iat": ..., "exp": ...}.
type claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// Option configures a Codec.
type Option func(*Codec)

// WithLifetime overrides the token lifetime. Only tests should need this.
func WithLifetime(d time.Duration) Option {
	return func(c *Codec) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// NewCodec builds a Codec. An empty secret is rejected.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    Lifetime,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Issue signs a token for userID that expires Lifetime after now.
func (c *Codec) Issue(userID string, now time.Time) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("token: empty user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(c.ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Verify checks signature, algorithm and expiry as of now and returns the
// embedded user id. All failures return ErrInvalidToken.
func (c *Codec) Verify(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out claims
	parsed, err := jwt.ParseWithClaims(raw, &out, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	id := strings.TrimSpace(out.UserID)
	if id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
