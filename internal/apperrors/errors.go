package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken     = errors.New("token is malformed or misses required claims")
	ErrNotAuthenticated = errors.New("no authenticated session")

	ErrBadCredentials    = errors.New("email or password is not valid")
	ErrRefreshRejected   = errors.New("refresh token is invalid, expired or revoked")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrStorageUnavailable = errors.New("storage medium is not available")
)

// Login refused cause the identity has too many recent failed attempts.
// Remaining time is carried so the UI may show a countdown.
type LockoutActiveError struct {
	Identity  string
	Remaining time.Duration
	Attempts  int
}

func (e *LockoutActiveError) Error() string {
	return fmt.Sprintf("identity locked out for %s after %d failed attempts", e.Remaining.Round(time.Second), e.Attempts)
}

func NewLockoutActive(identity string, remaining time.Duration, attempts int) *LockoutActiveError {
	return &LockoutActiveError{
		Identity:  identity,
		Remaining: remaining,
		Attempts:  attempts,
	}
}
