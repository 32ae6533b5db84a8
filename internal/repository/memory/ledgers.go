package memory

import (
	"context"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// UserRepo implements service.UserDirectory.
type UserRepo struct{ s *Store }

func (r *UserRepo) Exists(_ context.Context, userID uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	return ok && u.CanBook(), nil
}

// CouponRepo implements service.CouponLedger.
type CouponRepo struct{ s *Store }

func (r *CouponRepo) Discount(_ context.Context, userID, couponID uint64, amount int64, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[couponID]
	if !ok {
		return 0, model.ErrCouponNotFound
	}
	if err := c.CheckUsable(userID, now); err != nil {
		return 0, err
	}
	return c.DiscountFor(amount), nil
}

func (r *CouponRepo) MarkUsed(ctx context.Context, couponID, reservationID uint64, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[couponID]
	if !ok {
		return model.ErrCouponNotFound
	}
	if c.UsedAt != nil {
		if c.UsedReservationID != nil && *c.UsedReservationID == reservationID {
			return nil
		}
		return model.NewValidationError("coupon_id", "coupon already used")
	}
	at, rid := now, reservationID
	c.UsedAt = &at
	c.UsedReservationID = &rid
	record(ctx, func() {
		c.UsedAt = nil
		c.UsedReservationID = nil
	})
	return nil
}

func (r *CouponRepo) IssueReward(ctx context.Context, userID, reservationID uint64, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.coupons {
		if c.RewardReservationID != nil && *c.RewardReservationID == reservationID {
			return nil
		}
	}
	r.s.nextCouponID++
	id, rid := r.s.nextCouponID, reservationID
	exp := now.Add(model.RewardCouponValidFor)
	r.s.coupons[id] = &model.Coupon{
		ID:                  id,
		UserID:              userID,
		Type:                model.RewardCouponType,
		Value:               model.RewardCouponValue,
		ExpiresAt:           &exp,
		RewardReservationID: &rid,
		CreatedAt:           now,
	}
	record(ctx, func() { delete(r.s.coupons, id) })
	return nil
}

// PointRepo implements service.PointLedger.
type PointRepo struct{ s *Store }

func (r *PointRepo) Deduct(ctx context.Context, userID uint64, points int64, reservationID uint64, now time.Time) error {
	if points <= 0 {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, done := r.s.deductions[reservationID]; done {
		return nil
	}
	bal := r.s.balances[userID]
	if bal < points {
		return model.NewValidationError("points_used", "insufficient point balance")
	}
	r.s.balances[userID] = bal - points
	r.s.deductions[reservationID] = model.PointDeduction{
		UserID:        userID,
		ReservationID: reservationID,
		Points:        points,
		CreatedAt:     now,
	}
	record(ctx, func() {
		r.s.balances[userID] += points
		delete(r.s.deductions, reservationID)
	})
	return nil
}
