package session

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by session stores and services.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrChallengeFailed = errors.New("challenge validation failed")
	ErrAccessMismatch  = errors.New("access fingerprint mismatch")
	ErrNotVerified     = errors.New("session not verified")
)

// PolicyError reports an operation rejected by a precondition rather than a
// fault. It is surfaced to the requesting observer verbatim.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

// NewPolicyError builds a PolicyError with a formatted reason.
func NewPolicyError(format string, args ...any) *PolicyError {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

// IsPolicyError reports whether err is a policy rejection.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}
