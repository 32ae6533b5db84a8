package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/class-booking/internal/model"
)

const reservationViewColumns = `r.id, r.session_id, r.user_id, r.status, r.hold_expired_at, r.paid_at, r.canceled_at,
	r.completed_at, r.cancel_requested_at, r.cancel_reason, r.payment_ref, r.created_at, r.updated_at,
	s.title, s.start_at, s.price`

// List returns one page of reservations joined with their session and the
// total number of matches. From and To bound the session start time.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.ReservationView, int64, error) {
	where := []string{}
	args := []any{}

	if f.UserID != 0 {
		where = append(where, "r.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != 0 {
		where = append(where, "r.session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		where = append(where, "s.start_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "s.start_at <= ?")
		args = append(args, f.To.UTC())
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	db := conn(ctx, r.db)

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM class_reservations r
		JOIN class_sessions s ON s.id = r.session_id
		WHERE ` + cond
	if err := db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, classify(err, nil)
	}

	limit := f.Size
	offset := f.Offset()

	dataSQL := `SELECT ` + reservationViewColumns + `
		FROM class_reservations r
		JOIN class_sessions s ON s.id = r.session_id
		WHERE ` + cond + `
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, classify(err, nil)
	}
	defer rows.Close()

	out := make([]model.ReservationView, 0, limit)
	for rows.Next() {
		var v model.ReservationView
		res, err := scanReservation(rows, &v.SessionTitle, &v.StartAt, &v.Price)
		if err != nil {
			return nil, 0, err
		}
		v.Reservation = *res
		v.StartAt = v.StartAt.UTC()
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
