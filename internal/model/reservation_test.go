package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestReservationLifecycle(t *testing.T) {
	r := NewHold(1, 2, t0, 10*time.Minute)
	require.NoError(t, r.Validate())
	assert.True(t, r.ActiveHold(t0.Add(9*time.Minute)))
	assert.False(t, r.ActiveHold(t0.Add(10*time.Minute)))

	require.NoError(t, r.MarkPaid(t0.Add(time.Minute), "pay-1"))
	require.NoError(t, r.Validate())
	assert.Equal(t, StatusPaid, r.Status)
	assert.Equal(t, "pay-1", *r.PaymentRef)

	require.NoError(t, r.RequestCancel(t0.Add(2*time.Minute), "  sick  "))
	require.NoError(t, r.Validate())
	assert.Equal(t, "sick", r.CancelReason)

	require.NoError(t, r.RejectCancel(t0.Add(3*time.Minute)))
	require.NoError(t, r.Validate())
	assert.Nil(t, r.CancelRequestedAt)
	assert.Empty(t, r.CancelReason)

	require.NoError(t, r.RequestCancel(t0.Add(4*time.Minute), ""))
	require.NoError(t, r.ApproveCancel(t0.Add(5*time.Minute)))
	require.NoError(t, r.Validate())
	assert.True(t, r.Status.IsTerminal())
	assert.False(t, r.Status.HoldsSeat())
}

func TestReservationTransitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		status ReservationStatus
		want   error
	}{
		{"hold", StatusHold, ErrInvalidStateTransition},
		{"pending", StatusCancelRequested, ErrAlreadyPendingCancellation},
		{"canceled", StatusCanceled, ErrAlreadyCanceled},
		{"expired", StatusExpired, ErrAlreadyExpired},
		{"completed", StatusCompleted, ErrClassAlreadyCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reservation{Status: tt.status}
			err := r.RequestCancel(t0, "x")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidStateTransition)
			assert.Equal(t, tt.status, r.Status)
		})
	}
}

func TestMarkExpiredOnlyFromHold(t *testing.T) {
	r := NewPaid(1, 2, t0, "pay")
	assert.ErrorIs(t, r.MarkExpired(t0), ErrInvalidStateTransition)

	h := NewHold(1, 2, t0, time.Minute)
	require.NoError(t, h.MarkExpired(t0.Add(2*time.Minute)))
	assert.ErrorIs(t, h.MarkExpired(t0), ErrAlreadyExpired)
	assert.ErrorIs(t, h.MarkPaid(t0, "late"), ErrAlreadyExpired)
}

func TestMarkCompleted(t *testing.T) {
	r := NewPaid(1, 2, t0, "pay")
	require.NoError(t, r.MarkCompleted(t0.Add(time.Hour)))
	require.NoError(t, r.Validate())
	assert.True(t, r.Status.HoldsSeat())
	assert.ErrorIs(t, r.MarkCompleted(t0), ErrClassAlreadyCompleted)
}

func TestCancelReasonTruncated(t *testing.T) {
	r := NewPaid(1, 2, t0, "pay")
	require.NoError(t, r.RequestCancel(t0, strings.Repeat("가", 600)))
	assert.Equal(t, MaxCancelReasonLen, len([]rune(r.CancelReason)))
	require.NoError(t, r.Validate())
}

func TestValidateRejectsInconsistentTimestamps(t *testing.T) {
	r := NewHold(1, 2, t0, time.Minute)
	r.PaidAt = &t0
	assert.True(t, IsValidation(r.Validate()))

	p := &Reservation{Status: StatusPaid}
	assert.True(t, IsValidation(p.Validate()))

	bad := &Reservation{Status: "LOST"}
	var ve *ValidationError
	require.True(t, errors.As(bad.Validate(), &ve))
	assert.Equal(t, "status", ve.Field)
}

func TestParseStatus(t *testing.T) {
	st, ok, err := ParseStatus("paid")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusPaid, st)

	_, ok, err = ParseStatus("ALL")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseStatus("nope")
	assert.True(t, IsValidation(err))
}

func TestSessionInvariant(t *testing.T) {
	s := &Session{ID: 1, Capacity: 2, ReservedCount: 2, StartAt: t0}
	require.NoError(t, s.Validate())
	assert.Equal(t, 0, s.RemainingSeats())
	assert.True(t, s.HasStarted(t0))
	assert.False(t, s.HasStarted(t0.Add(-time.Second)))

	s.ReservedCount = 3
	assert.True(t, IsValidation(s.Validate()))

	a := (&Session{ID: 1, Capacity: 2, ReservedCount: 1, StartAt: t0}).AvailabilityAt(t0.Add(-time.Hour))
	assert.True(t, a.Open)
	assert.Equal(t, 1, a.RemainingSeats)
}

func TestCouponDiscount(t *testing.T) {
	pct := &Coupon{Type: CouponPercent, Value: 10}
	assert.Equal(t, int64(5000), pct.DiscountFor(50000))
	assert.Equal(t, int64(333), pct.DiscountFor(3333))

	fixed := &Coupon{Type: CouponFixed, Value: 70000}
	assert.Equal(t, int64(50000), fixed.DiscountFor(50000))
}

func TestCouponUsable(t *testing.T) {
	exp := t0.Add(time.Hour)
	c := &Coupon{ID: 1, UserID: 7, Type: CouponFixed, Value: 1000, ExpiresAt: &exp}
	require.NoError(t, c.CheckUsable(7, t0))
	assert.True(t, IsNotFound(c.CheckUsable(8, t0)))
	assert.True(t, IsValidation(c.CheckUsable(7, exp)))

	c.UsedAt = &t0
	assert.True(t, IsValidation(c.CheckUsable(7, t0)))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsConflict(ErrAlreadyCanceled))
	assert.True(t, IsConflict(ErrCapacityExceeded))
	assert.False(t, IsConflict(ErrBusy))
	assert.True(t, IsRetryable(ErrBusy))
	assert.True(t, IsNotFound(ErrSessionNotFound))

	var am *AmountMismatchError
	err := error(&AmountMismatchError{Expected: 44000, Paid: 45000})
	assert.ErrorIs(t, err, ErrAmountMismatch)
	require.True(t, errors.As(err, &am))
	assert.Equal(t, int64(44000), am.Expected)
}
