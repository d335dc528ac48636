package common

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// session token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// credential token lifecycle
	ErrTokenAlreadyUsed      = errors.New("token already used")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// account errors
	ErrEmailTaken          = fmt.Errorf("email is already registered: %w", ErrorAlreadyExists)
	ErrRoleAlreadyAssigned = fmt.Errorf("role is already assigned: %w", ErrorAlreadyExists)
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email is not confirmed")
	ErrAccountBlocked      = fmt.Errorf("account is blocked: %w", ErrorForbidden)
	ErrTooManyAttempts     = fmt.Errorf("too many failed login attempts: %w", ErrorForbidden)

	// admin errors
	ErrAlreadyBlocked   = errors.New("account is already blocked")
	ErrNotBlocked       = errors.New("account is not blocked")
	ErrAlreadyConfirmed = errors.New("email is already confirmed")
)

// BlockedError is returned when a blocked account tries to authenticate.
// The reason is shown to the caller.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return "account is blocked"
	}
	return "account is blocked: " + e.Reason
}

func (e *BlockedError) Unwrap() error { return ErrAccountBlocked }

// LockedError is returned while an account is locked out after repeated
// failed logins.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

// RemainingMinutes rounds the remaining lockout up to whole minutes, never
// reporting less than one.
func (e *LockedError) RemainingMinutes() int {
	m := int(math.Ceil(e.Remaining.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed login attempts, try again in %d minute(s)", e.RemainingMinutes())
}

func (e *LockedError) Unwrap() error { return ErrTooManyAttempts }
