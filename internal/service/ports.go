// Package service holds the booking engine: the capacity ledger, the
// reservation state machine, payment confirmation, the hold reaper, the
// completion sweep and read-side queries. Storage and outside systems are
// reached through the interfaces in this file; the MySQL and in-memory
// stores in internal/repository implement them.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

// TxManager runs fn as one unit of work. Stores called with the ctx passed
// to fn join that unit of work; any error returned by fn rolls it back.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionStore persists class sessions.
type SessionStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Session, error)
	// GetByIDForUpdate locks the session row until the unit of work in
	// ctx ends. It fails with model.ErrBusy when the lock wait times out.
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Session, error)
	UpdateReservedCount(ctx context.Context, id uint64, reserved int) error
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	Update(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	FindBySessionAndUser(ctx context.Context, sessionID, userID uint64) ([]*model.Reservation, error)
	// FindByPaymentRef returns model.ErrReservationNotFound when no
	// reservation carries ref.
	FindByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error)
	ListExpiredHoldIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	ListCompletableIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationView, int64, error)
}

// UserDirectory answers whether a user may book.
type UserDirectory interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
}

// CouponLedger applies and consumes discount coupons.
type CouponLedger interface {
	// Discount returns the amount the coupon takes off amount for userID.
	Discount(ctx context.Context, userID, couponID uint64, amount int64, now time.Time) (int64, error)
	// MarkUsed consumes the coupon for reservationID. Repeating it for the
	// same reservation is a no-op.
	MarkUsed(ctx context.Context, couponID, reservationID uint64, now time.Time) error
	// IssueReward grants the completion coupon once per reservation.
	IssueReward(ctx context.Context, userID, reservationID uint64, now time.Time) error
}

// PointLedger spends reward points.
type PointLedger interface {
	// Deduct removes points from userID's balance once per reservation.
	Deduct(ctx context.Context, userID uint64, points int64, reservationID uint64, now time.Time) error
}

// PaymentVerifier asks the payment provider what was actually charged.
// It returns model.ErrPaymentNotCompleted when the payment is not settled.
type PaymentVerifier interface {
	Verify(ctx context.Context, paymentRef string) (paidAmount int64, err error)
}

// EventPublisher ships reservation events after commit. Failures are
// logged by the caller and never undo a committed change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }
