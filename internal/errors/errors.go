package errors

import (
	"errors"
	"fmt"
)

// Common error types for the tenant gateway
var (
	// Token errors
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")

	// Handoff errors
	ErrHandoffConsumed = errors.New("handoff token already consumed")
	ErrInvalidReason   = errors.New("invalid reason")
	ErrInvalidDuration = errors.New("invalid duration")

	// Impersonation errors
	ErrRecordNotFound = errors.New("impersonation record not found")
	ErrRecordEnded    = errors.New("impersonation record already ended")

	// Configuration errors (fatal at boot, never per-request)
	ErrMissingBaseDomain = errors.New("missing base domain")
	ErrMissingSigningKey = errors.New("missing signing key")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
