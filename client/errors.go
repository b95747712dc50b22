package client

import (
	errs "github.com/satishkumarchitti/AI-Chat-Bot/client/internal/errors"
)

// Re-exported so callers compare against a single symbol.
var (
	ErrUnauthorized = errs.ErrUnauthorized
	ErrNotFound     = errs.ErrNotFound
)

// ClassifiedError is the error type returned for failed HTTP exchanges.
type ClassifiedError = errs.ClassifiedError

// IsUnauthorized reports whether the backend rejected the token (HTTP 401).
func IsUnauthorized(err error) bool { return errs.IsUnauthorized(err) }

// IsNotFound reports whether the resource does not exist (HTTP 404).
func IsNotFound(err error) bool { return errs.IsNotFound(err) }

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	return asClassified(err, &ce) && ce.Category == errs.Recoverable
}

// Detail returns the backend's human-readable failure message, or "".
func Detail(err error) string { return errs.Detail(err) }
