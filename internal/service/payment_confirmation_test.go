package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

func TestConfirmPaymentAmountCheck(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*harness, *model.Reservation, uint64) {
		h := newHarness(t, 2, time.Second)
		couponID := h.store.AddCoupon(model.Coupon{UserID: 1, Type: model.CouponPercent, Value: 10})
		h.store.SetPoints(1, 3000)
		r, err := h.svc.CreateHold(ctx, sessionID, 1)
		require.NoError(t, err)
		return h, r, couponID
	}

	t.Run("matching amount pays and consumes discounts", func(t *testing.T) {
		h, r, couponID := setup(t)
		got, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{
			ReservationID: r.ID, UserID: 1, PaymentRef: "imp_1",
			PaidAmount: 44000, Quantity: 1, CouponID: couponID, PointsUsed: 1000,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)
		assert.Equal(t, "imp_1", *got.PaymentRef)
		assert.Equal(t, int64(2000), h.store.Points(1))
		coupons := h.store.Coupons(1)
		require.Len(t, coupons, 1)
		require.NotNil(t, coupons[0].UsedReservationID)
		assert.Equal(t, r.ID, *coupons[0].UsedReservationID)
		assert.Equal(t, 1, h.reserved(t))
		assert.Contains(t, h.events.types(), queue.EventPaid)
	})

	t.Run("mismatch leaves everything unchanged", func(t *testing.T) {
		h, r, couponID := setup(t)
		_, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{
			ReservationID: r.ID, UserID: 1, PaymentRef: "imp_2",
			PaidAmount: 45000, Quantity: 1, CouponID: couponID, PointsUsed: 1000,
		})
		require.ErrorIs(t, err, model.ErrAmountMismatch)
		var am *model.AmountMismatchError
		require.True(t, errors.As(err, &am))
		assert.Equal(t, int64(44000), am.Expected)
		assert.Equal(t, int64(45000), am.Paid)

		assert.Equal(t, model.StatusHold, h.status(t, r.ID))
		assert.Equal(t, int64(3000), h.store.Points(1))
		assert.Nil(t, h.store.Coupons(1)[0].UsedAt)
		assert.Equal(t, 1, h.reserved(t))
	})

	t.Run("insufficient points roll back the payment", func(t *testing.T) {
		h, r, _ := setup(t)
		_, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{
			ReservationID: r.ID, UserID: 1, PaymentRef: "imp_3",
			PaidAmount: 45000, PointsUsed: 5000,
		})
		assert.True(t, model.IsValidation(err))
		assert.Equal(t, model.StatusHold, h.status(t, r.ID))
	})

	t.Run("someone else's coupon", func(t *testing.T) {
		h, r, _ := setup(t)
		foreign := h.store.AddCoupon(model.Coupon{UserID: 2, Type: model.CouponFixed, Value: 1000})
		_, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{
			ReservationID: r.ID, UserID: 1, PaymentRef: "imp_4",
			PaidAmount: 49000, CouponID: foreign,
		})
		assert.ErrorIs(t, err, model.ErrCouponNotFound)
		assert.Equal(t, model.StatusHold, h.status(t, r.ID))
	})
}

func TestConfirmPaymentRetryIsNoop(t *testing.T) {
	h := newHarness(t, 2, time.Second)
	ctx := context.Background()
	h.store.SetPoints(1, 3000)
	r, err := h.svc.CreateHold(ctx, sessionID, 1)
	require.NoError(t, err)

	in := ConfirmPaymentInput{ReservationID: r.ID, UserID: 1, PaymentRef: "imp_9", PaidAmount: 49000, PointsUsed: 1000}
	first, err := h.svc.ConfirmPayment(ctx, in)
	require.NoError(t, err)
	second, err := h.svc.ConfirmPayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2000), h.store.Points(1))
	assert.Equal(t, 1, h.reserved(t))

	_, err = h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{ReservationID: r.ID, UserID: 1, PaymentRef: "imp_10", PaidAmount: 50000})
	assert.ErrorIs(t, err, model.ErrHoldNoLongerValid)

	_, err = h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 2, PaymentRef: "imp_9", PaidAmount: 50000})
	assert.ErrorIs(t, err, model.ErrPaymentRefUsed)
}

func TestConfirmPaymentAfterHoldExpired(t *testing.T) {
	h := newHarness(t, 2, time.Second)
	ctx := context.Background()
	r, err := h.svc.CreateHold(ctx, sessionID, 1)
	require.NoError(t, err)

	h.clk.Advance(DefaultHoldTTL + time.Second)
	_, err = h.reaper.ExpireHolds(ctx, h.clk.Now())
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{ReservationID: r.ID, UserID: 1, PaymentRef: "imp_late", PaidAmount: 50000})
	assert.ErrorIs(t, err, model.ErrHoldNoLongerValid)
	assert.Equal(t, 0, h.reserved(t))
}

func TestConfirmPaymentDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("books a seat without a hold", func(t *testing.T) {
		h := newHarness(t, 1, time.Second)
		got, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 4, PaymentRef: "imp_d1", PaidAmount: 50000})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)
		assert.Nil(t, got.HoldExpiredAt)
		assert.Equal(t, 1, h.reserved(t))

		_, err = h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 5, PaymentRef: "imp_d2", PaidAmount: 50000})
		assert.ErrorIs(t, err, model.ErrCapacityExceeded)
		assert.Equal(t, 1, h.reserved(t))
	})

	t.Run("promotes the user's active hold", func(t *testing.T) {
		h := newHarness(t, 1, time.Second)
		hold, err := h.svc.CreateHold(ctx, sessionID, 4)
		require.NoError(t, err)
		got, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 4, PaymentRef: "imp_d3", PaidAmount: 50000})
		require.NoError(t, err)
		assert.Equal(t, hold.ID, got.ID)
		assert.Equal(t, 1, h.reserved(t))
	})

	t.Run("already booked", func(t *testing.T) {
		h := newHarness(t, 3, time.Second)
		_, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 4, PaymentRef: "imp_d4", PaidAmount: 50000})
		require.NoError(t, err)
		_, err = h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 4, PaymentRef: "imp_d5", PaidAmount: 50000})
		assert.ErrorIs(t, err, model.ErrAlreadyBooked)
		assert.Equal(t, 1, h.reserved(t))
	})

	t.Run("session started", func(t *testing.T) {
		h := newHarness(t, 3, time.Second)
		h.clk.Set(classTime)
		_, err := h.svc.ConfirmPayment(ctx, ConfirmPaymentInput{SessionID: sessionID, UserID: 4, PaymentRef: "imp_d6", PaidAmount: 50000})
		assert.ErrorIs(t, err, model.ErrSessionAlreadyStarted)
	})
}

func TestConfirmPaymentValidation(t *testing.T) {
	h := newHarness(t, 1, time.Second)
	ctx := context.Background()
	tests := []struct {
		name string
		in   ConfirmPaymentInput
	}{
		{"missing ref", ConfirmPaymentInput{SessionID: sessionID, UserID: 1, PaidAmount: 50000}},
		{"missing user", ConfirmPaymentInput{SessionID: sessionID, PaymentRef: "x", PaidAmount: 50000}},
		{"missing target", ConfirmPaymentInput{UserID: 1, PaymentRef: "x", PaidAmount: 50000}},
		{"quantity", ConfirmPaymentInput{SessionID: sessionID, UserID: 1, PaymentRef: "x", PaidAmount: 100000, Quantity: 2}},
		{"negative points", ConfirmPaymentInput{SessionID: sessionID, UserID: 1, PaymentRef: "x", PaidAmount: 50000, PointsUsed: -1}},
		{"points above price", ConfirmPaymentInput{SessionID: sessionID, UserID: 1, PaymentRef: "x", PaidAmount: 0, PointsUsed: 60000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.ConfirmPayment(ctx, tt.in)
			assert.True(t, model.IsValidation(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, h.reserved(t))
}
