// Package auth holds the credential primitives: the bcrypt password hasher
// and the HS256 token codec used for access, refresh and verification tokens.
//
// All tokens are signed with one process-wide secret. Rotating that secret
// invalidates every outstanding token.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope tags the purpose of a token.
type Scope string

const (
	ScopeAccess  Scope = "access"
	ScopeRefresh Scope = "refresh"
	ScopeVerify  Scope = "verify"
)

// DefaultTTL applies when Encode is called with a non-positive ttl.
const DefaultTTL = 15 * time.Minute

// Claims is the signed claim set. The subject is the account email.
type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec signing with secret. An empty issuer disables the
// iss claim and its check.
func NewCodec(secret []byte, issuer string, opts ...CodecOption) *Codec {
	c := &Codec{secret: secret, issuer: issuer, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Encode mints a token for subject with the given scope, valid for ttl.
func (c *Codec) Encode(subject string, scope Scope, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := c.now()

	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies token and returns its subject.
//
// The signature is checked before expiry, so ErrTokenExpired is only ever
// reported for authentic tokens. Any token whose scope differs from expected
// yields ErrScopeMismatch.
func (c *Codec) Decode(token string, expected Scope) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		// Strict base64 rejects non-zero padding bits, so no two signature
		// encodings verify as the same token.
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", common.ErrTokenExpired
		default:
			return "", common.ErrInvalidSignature
		}
	}

	if claims.Scope != expected {
		return "", common.ErrScopeMismatch
	}
	if claims.Subject == "" {
		return "", common.ErrInvalidSignature
	}

	return claims.Subject, nil
}
