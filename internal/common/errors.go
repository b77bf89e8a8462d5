// Package common defines shared constants and sentinel errors used across
// the authentication service layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrConflict        = errors.New("account already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Login errors. Unknown email and wrong password share ErrInvalidCredentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")

	// Verification redemption errors.
	ErrInvalidToken    = errors.New("invalid token")
	ErrAlreadyVerified = errors.New("email already verified")

	// Token codec errors.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrScopeMismatch    = errors.New("token scope mismatch")

	// Avatar errors.
	ErrInvalidAvatarKey = errors.New("invalid avatar key")
)
