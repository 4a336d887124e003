package service

import (
	"errors"

	"github.com/atinyakov/linkvault/internal/access"
)

var (
	// ErrValidation marks deposit input that was rejected before any write.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when an operation needs an identity and
	// none was resolved.
	ErrUnauthorized = errors.New("authentication required")
)

// ValidationError carries a user-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// DeniedError reports a non-granted access decision.
type DeniedError struct {
	Decision access.Decision
}

func (e *DeniedError) Error() string { return "access denied: " + e.Decision.String() }

func denied(d access.Decision) error { return &DeniedError{Decision: d} }

// DecisionOf extracts the access decision carried by err, if any.
func DecisionOf(err error) (access.Decision, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Decision, true
	}
	return access.Granted, false
}
