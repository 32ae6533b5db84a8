package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// ReservationRepo provides persistence for class reservations. All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, session_id, user_id, status, hold_expired_at, paid_at, canceled_at,
	completed_at, cancel_requested_at, cancel_reason, payment_ref, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }, extra ...any) (*model.Reservation, error) {
	var (
		r                                                   model.Reservation
		status                                              string
		holdExp, paid, canceled, completed, cancelRequested sql.NullTime
		reason, ref                                         sql.NullString
	)
	dest := []any{&r.ID, &r.SessionID, &r.UserID, &status, &holdExp, &paid, &canceled,
		&completed, &cancelRequested, &reason, &ref, &r.CreatedAt, &r.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Status = model.ReservationStatus(status)
	r.HoldExpiredAt = timePtr(holdExp)
	r.PaidAt = timePtr(paid)
	r.CanceledAt = timePtr(canceled)
	r.CompletedAt = timePtr(completed)
	r.CancelRequestedAt = timePtr(cancelRequested)
	r.CancelReason = reason.String
	if ref.Valid {
		s := ref.String
		r.PaymentRef = &s
	}
	return &r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a reservation and fills in its generated ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	const q = `INSERT INTO class_reservations
		(session_id, user_id, status, hold_expired_at, paid_at, canceled_at, completed_at,
		 cancel_requested_at, cancel_reason, payment_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := conn(ctx, r.db).ExecContext(ctx, q,
		res.SessionID, res.UserID, string(res.Status),
		nullTime(res.HoldExpiredAt), nullTime(res.PaidAt), nullTime(res.CanceledAt), nullTime(res.CompletedAt),
		nullTime(res.CancelRequestedAt), res.CancelReason, nullString(res.PaymentRef),
		res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrPaymentRefUsed
		}
		return classify(err, nil)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// Update writes every mutable column of res. The row is expected to exist
// and be locked by the caller.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	const q = `UPDATE class_reservations SET status = ?, hold_expired_at = ?, paid_at = ?, canceled_at = ?,
		completed_at = ?, cancel_requested_at = ?, cancel_reason = ?, payment_ref = ?, updated_at = ?
		WHERE id = ?`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		string(res.Status), nullTime(res.HoldExpiredAt), nullTime(res.PaidAt), nullTime(res.CanceledAt),
		nullTime(res.CompletedAt), nullTime(res.CancelRequestedAt), res.CancelReason, nullString(res.PaymentRef),
		res.UpdatedAt.UTC(), res.ID,
	)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrPaymentRefUsed
		}
		return classify(err, nil)
	}
	return nil
}

// GetByID reads a reservation without locking.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM class_reservations WHERE id = ?`
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, classify(err, model.ErrReservationNotFound)
	}
	return res, nil
}

// GetByIDForUpdate re-reads a reservation under its row lock. Callers take
// the session lock first.
func (r *ReservationRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	q, err := lockingConn(ctx)
	if err != nil {
		return nil, err
	}
	const sel = `SELECT ` + reservationColumns + ` FROM class_reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(q.QueryRowContext(ctx, sel, id))
	if err != nil {
		return nil, classify(err, model.ErrReservationNotFound)
	}
	return res, nil
}

// FindBySessionAndUser returns every reservation userID has on sessionID,
// oldest first.
func (r *ReservationRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID uint64) ([]*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM class_reservations
		WHERE session_id = ? AND user_id = ? ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, sessionID, userID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()
	var out []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// FindByPaymentRef looks a reservation up by its external payment id.
func (r *ReservationRepo) FindByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM class_reservations WHERE payment_ref = ?`
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, ref))
	if err != nil {
		return nil, classify(err, model.ErrReservationNotFound)
	}
	return res, nil
}

// ListExpiredHoldIDs returns up to limit HOLD ids whose deadline is before
// now, earliest deadline first.
func (r *ReservationRepo) ListExpiredHoldIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM class_reservations
		WHERE status = 'HOLD' AND hold_expired_at < ?
		ORDER BY hold_expired_at, id LIMIT ?`
	return r.listIDs(ctx, q, now.UTC(), limit)
}

// ListCompletableIDs returns up to limit PAID ids whose session started at
// or before now.
func (r *ReservationRepo) ListCompletableIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT r.id FROM class_reservations r
		JOIN class_sessions s ON s.id = r.session_id
		WHERE r.status = 'PAID' AND s.start_at <= ?
		ORDER BY r.id LIMIT ?`
	return r.listIDs(ctx, q, now.UTC(), limit)
}

func (r *ReservationRepo) listIDs(ctx context.Context, q string, args ...any) ([]uint64, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
