package model

import "time"

// CouponType selects how a coupon's value is applied.
type CouponType string

const (
	CouponFixed   CouponType = "FIXED"
	CouponPercent CouponType = "PERCENT"
)

// Coupon is a discount owned by one user and consumable once.
type Coupon struct {
	ID                  uint64
	UserID              uint64
	Type                CouponType
	Value               int64
	ExpiresAt           *time.Time
	UsedAt              *time.Time
	UsedReservationID   *uint64
	RewardReservationID *uint64 // set when issued for a completed class
	CreatedAt           time.Time
}

// DiscountFor returns the discount the coupon grants on amount. Percent
// discounts truncate toward zero; no discount exceeds amount.
func (c *Coupon) DiscountFor(amount int64) int64 {
	var d int64
	switch c.Type {
	case CouponFixed:
		d = c.Value
	case CouponPercent:
		d = amount * c.Value / 100
	}
	if d < 0 {
		return 0
	}
	if d > amount {
		return amount
	}
	return d
}

// CheckUsable verifies ownership, expiry and prior use.
func (c *Coupon) CheckUsable(userID uint64, now time.Time) error {
	if c.UserID != userID {
		return ErrCouponNotFound
	}
	if c.UsedAt != nil {
		return NewValidationError("coupon_id", "coupon already used")
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return NewValidationError("coupon_id", "coupon expired")
	}
	if c.Type != CouponFixed && c.Type != CouponPercent {
		return NewValidationError("coupon_id", "unknown coupon type")
	}
	return nil
}

// Reward coupon issued when a class is completed.
const (
	RewardCouponType     = CouponPercent
	RewardCouponValue    = 10
	RewardCouponValidFor = 90 * 24 * time.Hour
)

// PointDeduction records points spent on a reservation.
type PointDeduction struct {
	UserID        uint64
	ReservationID uint64
	Points        int64
	CreatedAt     time.Time
}
