package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// CouponRepo implements the coupon ledger on the coupons table. Coupon
// rows are locked after the session row, never before.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

func (r *CouponRepo) get(ctx context.Context, couponID uint64, forUpdate bool) (*model.Coupon, error) {
	q := `SELECT id, user_id, type, value, expires_at, used_at, used_reservation_id, reward_reservation_id, created_at
		FROM coupons WHERE id = ?`
	db := conn(ctx, r.db)
	if forUpdate {
		tx, err := lockingConn(ctx)
		if err != nil {
			return nil, err
		}
		db = tx
		q += " FOR UPDATE"
	}
	var (
		c                 model.Coupon
		typ               string
		expires, used     sql.NullTime
		usedRes, rewardID sql.NullInt64
	)
	err := db.QueryRowContext(ctx, q, couponID).Scan(
		&c.ID, &c.UserID, &typ, &c.Value, &expires, &used, &usedRes, &rewardID, &c.CreatedAt)
	if err != nil {
		return nil, classify(err, model.ErrCouponNotFound)
	}
	c.Type = model.CouponType(typ)
	c.ExpiresAt = timePtr(expires)
	c.UsedAt = timePtr(used)
	if usedRes.Valid {
		v := uint64(usedRes.Int64)
		c.UsedReservationID = &v
	}
	if rewardID.Valid {
		v := uint64(rewardID.Int64)
		c.RewardReservationID = &v
	}
	return &c, nil
}

// Discount locks the coupon, checks it belongs to userID and is still
// usable, and returns what it takes off amount.
func (r *CouponRepo) Discount(ctx context.Context, userID, couponID uint64, amount int64, now time.Time) (int64, error) {
	c, err := r.get(ctx, couponID, true)
	if err != nil {
		return 0, err
	}
	if err := c.CheckUsable(userID, now); err != nil {
		return 0, err
	}
	return c.DiscountFor(amount), nil
}

// MarkUsed consumes the coupon for reservationID.
func (r *CouponRepo) MarkUsed(ctx context.Context, couponID, reservationID uint64, now time.Time) error {
	const q = `UPDATE coupons SET used_at = ?, used_reservation_id = ? WHERE id = ? AND used_at IS NULL`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, now.UTC(), reservationID, couponID)
	if err != nil {
		return classify(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	c, err := r.get(ctx, couponID, false)
	if err != nil {
		return err
	}
	if c.UsedReservationID != nil && *c.UsedReservationID == reservationID {
		return nil
	}
	return model.NewValidationError("coupon_id", "coupon already used")
}

// IssueReward inserts the completion coupon. The unique key on
// reward_reservation_id makes a repeat a no-op.
func (r *CouponRepo) IssueReward(ctx context.Context, userID, reservationID uint64, now time.Time) error {
	const q = `INSERT INTO coupons (user_id, type, value, expires_at, reward_reservation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		userID, string(model.RewardCouponType), model.RewardCouponValue,
		now.Add(model.RewardCouponValidFor).UTC(), reservationID, now.UTC())
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return classify(err, nil)
	}
	return nil
}
