package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusHold            ReservationStatus = "HOLD"
	StatusPaid            ReservationStatus = "PAID"
	StatusCancelRequested ReservationStatus = "CANCEL_REQUESTED"
	StatusCanceled        ReservationStatus = "CANCELED"
	StatusExpired         ReservationStatus = "EXPIRED"
	StatusCompleted       ReservationStatus = "COMPLETED"
)

// MaxCancelReasonLen is the longest cancel reason stored, in characters.
const MaxCancelReasonLen = 500

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusHold, StatusPaid, StatusCancelRequested, StatusCanceled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusExpired || s == StatusCompleted
}

// HoldsSeat reports whether a reservation in s is counted in the
// session's reserved seats.
func (s ReservationStatus) HoldsSeat() bool {
	switch s {
	case StatusHold, StatusPaid, StatusCancelRequested, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus parses a status filter. "ALL" and the empty string mean no
// filter and return ok=false with a nil error.
func ParseStatus(raw string) (ReservationStatus, bool, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || s == "ALL" {
		return "", false, nil
	}
	st := ReservationStatus(s)
	if !st.Valid() {
		return "", false, NewValidationError("status", fmt.Sprintf("unknown value %q", raw))
	}
	return st, true, nil
}

// Reservation is one user's claim on one seat of a session.
//
// Fields:
//  ID                – primary key identifier.
//  SessionID         – class session being booked.
//  UserID            – user who owns the reservation.
//  Status            – lifecycle state, see ReservationStatus.
//  HoldExpiredAt     – deadline of an unpaid hold.
//  PaidAt            – when payment was confirmed.
//  CanceledAt        – when an admin approved the cancellation.
//  CompletedAt       – when the class was marked as taken.
//  CancelRequestedAt – when the user asked to cancel.
//  CancelReason      – free text from the user, at most 500 characters.
//  PaymentRef        – external payment identifier, set once PAID.
type Reservation struct {
	ID                uint64            // class_reservations.id
	SessionID         uint64            // class_reservations.session_id
	UserID            uint64            // class_reservations.user_id
	Status            ReservationStatus // class_reservations.status
	HoldExpiredAt     *time.Time        // class_reservations.hold_expired_at
	PaidAt            *time.Time        // class_reservations.paid_at
	CanceledAt        *time.Time        // class_reservations.canceled_at
	CompletedAt       *time.Time        // class_reservations.completed_at
	CancelRequestedAt *time.Time        // class_reservations.cancel_requested_at
	CancelReason      string            // class_reservations.cancel_reason
	PaymentRef        *string           // class_reservations.payment_ref (nullable)
	CreatedAt         time.Time         // class_reservations.created_at
	UpdatedAt         time.Time         // class_reservations.updated_at
}

// NewHold returns an unsaved HOLD reservation expiring ttl after now.
func NewHold(sessionID, userID uint64, now time.Time, ttl time.Duration) *Reservation {
	exp := now.Add(ttl)
	return &Reservation{
		SessionID:     sessionID,
		UserID:        userID,
		Status:        StatusHold,
		HoldExpiredAt: &exp,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewPaid returns an unsaved reservation that skipped the hold stage.
func NewPaid(sessionID, userID uint64, now time.Time, paymentRef string) *Reservation {
	paid := now
	ref := paymentRef
	return &Reservation{
		SessionID:  sessionID,
		UserID:     userID,
		Status:     StatusPaid,
		PaidAt:     &paid,
		PaymentRef: &ref,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusHold:            {StatusPaid, StatusExpired},
	StatusPaid:            {StatusCancelRequested, StatusCompleted},
	StatusCancelRequested: {StatusCanceled, StatusPaid},
}

// CheckTransition reports whether r may move to the given status without
// changing r. Services use it to reject a request before taking locks.
func (r *Reservation) CheckTransition(to ReservationStatus) error {
	for _, s := range transitions[r.Status] {
		if s == to {
			return nil
		}
	}
	return transitionError(r.Status, to)
}

// ActiveHold reports whether r is a hold that has not timed out at now.
func (r *Reservation) ActiveHold(now time.Time) bool {
	return r.Status == StatusHold && r.HoldExpiredAt != nil && r.HoldExpiredAt.After(now)
}

// MarkPaid moves a HOLD to PAID.
func (r *Reservation) MarkPaid(now time.Time, paymentRef string) error {
	if r.Status != StatusHold {
		return transitionError(r.Status, StatusPaid)
	}
	paid := now
	ref := paymentRef
	r.Status = StatusPaid
	r.PaidAt = &paid
	r.PaymentRef = &ref
	r.UpdatedAt = now
	return nil
}

// MarkExpired moves an unpaid HOLD to EXPIRED.
func (r *Reservation) MarkExpired(now time.Time) error {
	if err := r.CheckTransition(StatusExpired); err != nil {
		return err
	}
	r.Status = StatusExpired
	r.UpdatedAt = now
	return nil
}

// RequestCancel moves a PAID reservation to CANCEL_REQUESTED. The reason is
// trimmed and cut to MaxCancelReasonLen characters.
func (r *Reservation) RequestCancel(now time.Time, reason string) error {
	if err := r.CheckTransition(StatusCancelRequested); err != nil {
		return err
	}
	at := now
	r.Status = StatusCancelRequested
	r.CancelRequestedAt = &at
	r.CancelReason = truncateReason(reason)
	r.UpdatedAt = now
	return nil
}

// ApproveCancel finalizes a requested cancellation. The caller releases
// the seat in the same unit of work.
func (r *Reservation) ApproveCancel(now time.Time) error {
	if err := r.CheckTransition(StatusCanceled); err != nil {
		return err
	}
	at := now
	r.Status = StatusCanceled
	r.CanceledAt = &at
	r.UpdatedAt = now
	return nil
}

// RejectCancel returns a requested cancellation to PAID and clears the
// request.
func (r *Reservation) RejectCancel(now time.Time) error {
	if r.Status != StatusCancelRequested {
		return transitionError(r.Status, StatusPaid)
	}
	r.Status = StatusPaid
	r.CancelRequestedAt = nil
	r.CancelReason = ""
	r.UpdatedAt = now
	return nil
}

// MarkCompleted records that the class took place.
func (r *Reservation) MarkCompleted(now time.Time) error {
	if err := r.CheckTransition(StatusCompleted); err != nil {
		return err
	}
	at := now
	r.Status = StatusCompleted
	r.CompletedAt = &at
	r.UpdatedAt = now
	return nil
}

// Validate checks that the timestamps agree with the status.
func (r *Reservation) Validate() error {
	if !r.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown value %q", r.Status))
	}
	if utf8.RuneCountInString(r.CancelReason) > MaxCancelReasonLen {
		return NewValidationError("cancel_reason", "too long")
	}
	switch r.Status {
	case StatusHold:
		if r.HoldExpiredAt == nil {
			return NewValidationError("hold_expired_at", "required for HOLD")
		}
		if r.PaidAt != nil || r.CanceledAt != nil || r.CompletedAt != nil {
			return NewValidationError("status", "HOLD cannot carry paid, canceled or completed time")
		}
	case StatusPaid:
		if r.PaidAt == nil {
			return NewValidationError("paid_at", "required for PAID")
		}
		if r.CanceledAt != nil || r.CompletedAt != nil || r.CancelRequestedAt != nil {
			return NewValidationError("status", "PAID cannot carry cancel or completion time")
		}
	case StatusCancelRequested:
		if r.PaidAt == nil || r.CancelRequestedAt == nil {
			return NewValidationError("cancel_requested_at", "required for CANCEL_REQUESTED")
		}
	case StatusCanceled:
		if r.CanceledAt == nil {
			return NewValidationError("canceled_at", "required for CANCELED")
		}
	case StatusExpired:
		if r.PaidAt != nil {
			return NewValidationError("paid_at", "EXPIRED reservation was never paid")
		}
	case StatusCompleted:
		if r.PaidAt == nil || r.CompletedAt == nil {
			return NewValidationError("completed_at", "required for COMPLETED")
		}
	}
	return nil
}

// transitionError picks the most specific error for leaving from.
func transitionError(from, to ReservationStatus) error {
	switch from {
	case StatusCancelRequested:
		return ErrAlreadyPendingCancellation
	case StatusCanceled:
		return ErrAlreadyCanceled
	case StatusExpired:
		return ErrAlreadyExpired
	case StatusCompleted:
		return ErrClassAlreadyCompleted
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) <= MaxCancelReasonLen {
		return reason
	}
	runes := []rune(reason)
	return string(runes[:MaxCancelReasonLen])
}

// ReservationFilter selects reservations for list queries. Zero values
// mean "no constraint"; From and To bound the session start time.
type ReservationFilter struct {
	UserID    uint64
	SessionID uint64
	Status    ReservationStatus
	From      *time.Time
	To        *time.Time
	Page      int
	Size      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f *ReservationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 {
		f.Size = DefaultPageSize
	}
	if f.Size > MaxPageSize {
		f.Size = MaxPageSize
	}
}

// Offset returns the row offset of the current page.
func (f ReservationFilter) Offset() int {
	return (f.Page - 1) * f.Size
}

// ReservationView joins a reservation with the session fields shown in
// lists.
type ReservationView struct {
	Reservation
	SessionTitle string
	StartAt      time.Time
	Price        int64
}
