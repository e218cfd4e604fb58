// Package token mints and validates the bearer session credentials handed
// out after a successful login.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired is returned for a well-formed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for anything else: bad signature, wrong
	// algorithm, malformed payload.
	ErrInvalid = errors.New("invalid token")
)

// Claims are the identity claims embedded in every session token.
type Claims struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

type sessionClaims struct {
	Claims
	jwt.RegisteredClaims
}

// DefaultTTL is the uniform session lifetime.
const DefaultTTL = 24 * time.Hour

// Issuer signs and validates session tokens with a process-wide HS256
// secret loaded once at startup. Rotating the secret invalidates every
// outstanding token; issued tokens are not persisted. Each token carries a
// unique jti so a revocation list could be added later, but none exists.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer with the default 24h TTL.
func NewIssuer(secret []byte, issuer string) *Issuer {
	return &Issuer{secret: secret, issuer: issuer, ttl: DefaultTTL, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token carrying the claims, expiring ttl after now.
func (i *Issuer) Issue(c Claims) (string, error) {
	now := i.now()
	sc := sessionClaims{
		Claims: c,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sc)
	return tok.SignedString(i.secret)
}

// Validate checks signature and expiry and returns the embedded claims.
// Validation is stateless and needs no locking.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	var sc sessionClaims
	tok, err := jwt.ParseWithClaims(tokenString, &sc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}
	return &sc.Claims, nil
}

type ctxKey struct{}

// NewContext stores validated claims on the request context.
func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext retrieves claims placed by the auth middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}
