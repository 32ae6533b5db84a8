package model

import (
	"errors"
	"fmt"
)

// Booking errors. Handlers translate them into HTTP statuses with
// errors.Is, so wrapped variants keep the category of their parent.
var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound            = errors.New("not found")
	ErrSessionNotFound     = fmt.Errorf("%w: class session", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("%w: reservation", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: user", ErrNotFound)
	ErrCouponNotFound      = fmt.Errorf("%w: coupon", ErrNotFound)

	ErrCapacityExceeded      = errors.New("class session is full")
	ErrAlreadyBooked         = errors.New("user already has a paid reservation for this session")
	ErrPendingCancellation   = errors.New("user has a cancellation pending for this session")
	ErrSessionAlreadyStarted = errors.New("class session has already started")
	ErrHoldNoLongerValid     = errors.New("hold is no longer valid")

	ErrInvalidStateTransition     = errors.New("invalid reservation state transition")
	ErrAlreadyPendingCancellation = fmt.Errorf("%w: cancellation already requested", ErrInvalidStateTransition)
	ErrAlreadyCanceled            = fmt.Errorf("%w: reservation already canceled", ErrInvalidStateTransition)
	ErrAlreadyExpired             = fmt.Errorf("%w: reservation already expired", ErrInvalidStateTransition)
	ErrClassAlreadyCompleted      = fmt.Errorf("%w: class already completed", ErrInvalidStateTransition)

	ErrAmountMismatch      = errors.New("paid amount does not match expected amount")
	ErrPaymentNotCompleted = errors.New("payment has not completed")
	ErrPaymentRefUsed      = errors.New("payment reference already used by another reservation")

	// ErrBusy means the session lock could not be taken in time. It is the
	// only error a client may retry unchanged.
	ErrBusy = errors.New("session is busy, retry later")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AmountMismatchError carries both sides of a failed payment amount check.
type AmountMismatchError struct {
	Expected int64
	Paid     int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, paid %d", ErrAmountMismatch, e.Expected, e.Paid)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is an input validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRetryable reports whether the operation may be retried unchanged.
func IsRetryable(err error) bool { return errors.Is(err, ErrBusy) }

// IsConflict reports whether err is a business-rule rejection caused by
// the current state of the session or reservation.
func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrAlreadyBooked),
		errors.Is(err, ErrPendingCancellation),
		errors.Is(err, ErrSessionAlreadyStarted),
		errors.Is(err, ErrHoldNoLongerValid),
		errors.Is(err, ErrPaymentRefUsed),
		errors.Is(err, ErrInvalidStateTransition):
		return true
	}
	return false
}
