package auth

import "errors"

// Authentication failures. Callers outside this package must collapse all
// four into one unauthorized response; they are distinct only for logs,
// metrics and tests.
var (
	ErrInvalidFormat = errors.New("invalid api key format")
	ErrNotFound      = errors.New("api key not found")
	ErrDisabled      = errors.New("account is disabled")
	ErrExpired       = errors.New("api key has expired")
)

var (
	// ErrAccountNotFound is returned by id-based operations on an unknown account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
)

// IsAuthFailure reports whether err is one of the authentication failures.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDisabled) ||
		errors.Is(err, ErrExpired)
}
