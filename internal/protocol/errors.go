package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrViolation marks any payload that does not match the wire schema.
	ErrViolation = errors.New("protocol: wire schema violation")
)

// ViolationError carries the reason a payload was rejected.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("protocol: wire schema violation: %s", e.Reason)
}

func (e *ViolationError) Unwrap() error { return ErrViolation }

// violation builds a ViolationError with a formatted reason.
func violation(format string, args ...any) error {
	return &ViolationError{Reason: fmt.Sprintf(format, args...)}
}
