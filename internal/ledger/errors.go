package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError is a bad-shape/bad-range input, rejected before any
// write. Safe to retry after correcting the request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError is a missing transaction / sub-transaction / link.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// MismatchError is a currency or direction incompatibility between a
// refund and its original.
type MismatchError struct {
	Field string // "currency" or "direction"
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: want %s, got %s", e.Field, e.Want, e.Got)
}

// Conflict reasons. A ConflictError is a true business-rule violation;
// it always carries the authoritative remaining amount so the caller
// can pick a corrected value instead of the core silently clamping.
const (
	ConflictAllocationExceedsRemaining = "allocation_exceeds_remaining"
	ConflictAlreadyFullyRefunded       = "already_fully_refunded"
	ConflictOverAllocatedSplit         = "over_allocated_split"
)

type ConflictError struct {
	Reason    string
	Remaining decimal.Decimal
	Msg       string
}

func (e *ConflictError) Error() string { return e.Msg }

func allocationExceeds(remaining, requested decimal.Decimal) error {
	return &ConflictError{
		Reason:    ConflictAllocationExceedsRemaining,
		Remaining: remaining,
		Msg:       fmt.Sprintf("allocation %s exceeds remaining amount %s", requested, remaining),
	}
}

func alreadyFullyRefunded(remaining decimal.Decimal) error {
	return &ConflictError{
		Reason:    ConflictAlreadyFullyRefunded,
		Remaining: remaining,
		Msg:       "original is already fully refunded",
	}
}

func overAllocatedSplit(parent, subTotal decimal.Decimal) error {
	return &ConflictError{
		Reason:    ConflictOverAllocatedSplit,
		Remaining: parent.Sub(subTotal),
		Msg:       fmt.Sprintf("split total %s exceeds parent amount %s", subTotal, parent),
	}
}

// IsConflict reports whether err is a ConflictError with the given reason.
func IsConflict(err error, reason string) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Reason == reason
}
