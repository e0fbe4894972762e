package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced trade, position or account
// does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports malformed or out-of-range input. It is
// rejected before any mutation and safe to surface to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// QuantityExceededError reports a close or reservation that asks for
// more contracts than remain open. Nothing is applied partially.
type QuantityExceededError struct {
	Requested int
	Remaining int
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("cannot close %d contracts, only %d remaining open", e.Requested, e.Remaining)
}

// InsufficientSharesError reports a covered-call reservation that asks
// for more shares than a stock position has available.
type InsufficientSharesError struct {
	Needed    int
	Available int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares available: need %d, have %d", e.Needed, e.Available)
}

// ReferentialIntegrityError reports an operation that would break a
// required relationship, such as deleting a stock position that open
// covered calls still reference.
type ReferentialIntegrityError struct {
	Reason string
}

func (e *ReferentialIntegrityError) Error() string { return e.Reason }

func integrityf(format string, args ...any) error {
	return &ReferentialIntegrityError{Reason: fmt.Sprintf(format, args...)}
}
