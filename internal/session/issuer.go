// Package session mints and verifies the signed, time-bounded tokens that
// prove a completed login. Tokens are never stored server side.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrMissingSecret is returned by NewIssuer when no signing secret is
// configured. Callers must treat it as fatal at startup.
var ErrMissingSecret = errors.New("session: signing secret not configured")

const (
	DefaultLifetime  = 2 * time.Hour
	RememberLifetime = 30 * 24 * time.Hour
)

// LifetimeFor picks the token lifetime for a "remember me" choice.
func LifetimeFor(remember bool) time.Duration {
	if remember {
		return RememberLifetime
	}
	return DefaultLifetime
}

// Claims carries identity and role only; role is the sole authorization
// primitive.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret, issuer string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	i := &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Issue signs an HS256 token for username/role. A non-positive lifetime
// falls back to DefaultLifetime so every token expires.
func (i *Issuer) Issue(username, role string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	now := i.now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the token's claims, or false for any malformed, forged or
// expired token. Callers must not distinguish between those cases.
func (i *Issuer) Verify(token string) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !tok.Valid || claims.Username == "" {
		return nil, false
	}
	return claims, true
}
