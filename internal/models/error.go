package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("invalid credentials")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrEmailTaken       = errors.New("email already registered")

	// Lockout: the identifier exceeded the failed-attempt threshold.
	// Returned without touching the credential store or the hasher.
	ErrTooManyAttempts = errors.New("too many failed attempts")

	// Token errors. Callers rely on the distinction: an expired access
	// token means "refresh", an expired refresh token means "log in again".
	ErrTokenMalformed   = errors.New("token is malformed or tampered")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenWrongType   = errors.New("token type mismatch")
	ErrTokenRevoked     = errors.New("token has been revoked")

	// Dependency errors propagate as a distinct kind so the transport
	// layer can choose retry/503 semantics.
	ErrDependencyUnavailable = errors.New("backing service unavailable")
)
