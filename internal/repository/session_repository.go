package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/class-booking/internal/model"
)

// SessionRepo manages persistence for class sessions. Sessions are
// authored elsewhere; this service only reads them and maintains
// reserved_count.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, title, capacity, reserved_count, start_at, price, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.Title, &s.Capacity, &s.ReservedCount, &s.StartAt, &s.Price, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID reads a session without locking.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?`
	s, err := scanSession(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, classify(err, model.ErrSessionNotFound)
	}
	return s, nil
}

// GetByIDForUpdate reads the session and takes its row lock for the rest
// of the transaction. InnoDB gives up after innodb_lock_wait_timeout,
// which surfaces as model.ErrBusy.
func (r *SessionRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Session, error) {
	q, err := lockingConn(ctx)
	if err != nil {
		return nil, err
	}
	const sel = `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ? FOR UPDATE`
	s, err := scanSession(q.QueryRowContext(ctx, sel, id))
	if err != nil {
		return nil, classify(err, model.ErrSessionNotFound)
	}
	return s, nil
}

// UpdateReservedCount stores a new reserved_count. Values outside
// 0..capacity match no row and are rejected.
func (r *SessionRepo) UpdateReservedCount(ctx context.Context, id uint64, reserved int) error {
	const q = `UPDATE class_sessions SET reserved_count = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND ? BETWEEN 0 AND capacity`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, reserved, id, reserved)
	if err != nil {
		return classify(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewValidationError("reserved_count", "out of range or session missing")
	}
	return nil
}
