package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// PointRepo spends reward points. Every deduction is journaled in
// point_deductions, keyed by reservation, so a deduction happens once.
type PointRepo struct {
	db *sql.DB
}

// NewPointRepo returns a PointRepo bound to the given database.
func NewPointRepo(db *sql.DB) *PointRepo { return &PointRepo{db: db} }

// Deduct takes points from userID's balance for reservationID. It fails
// with a validation error when the balance is too low.
func (r *PointRepo) Deduct(ctx context.Context, userID uint64, points int64, reservationID uint64, now time.Time) error {
	if points <= 0 {
		return nil
	}
	db := conn(ctx, r.db)
	const journal = `INSERT INTO point_deductions (reservation_id, user_id, points, created_at) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, journal, reservationID, userID, points, now.UTC()); err != nil {
		if isDuplicate(err) {
			return nil
		}
		return classify(err, nil)
	}
	const debit = `UPDATE user_points SET balance = balance - ?, updated_at = ? WHERE user_id = ? AND balance >= ?`
	res, err := db.ExecContext(ctx, debit, points, now.UTC(), userID, points)
	if err != nil {
		return classify(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewValidationError("points_used", "insufficient point balance")
	}
	return nil
}

// Balance returns userID's current balance, zero when no account exists.
func (r *PointRepo) Balance(ctx context.Context, userID uint64) (int64, error) {
	var bal int64
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT balance FROM user_points WHERE user_id = ?`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return bal, classify(err, nil)
}
