package repository

import (
	"context"
	"database/sql"
	"errors"
)

// UserRepo reads the users table owned by the account service.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Exists reports whether the user exists, is active and not deleted.
func (r *UserRepo) Exists(ctx context.Context, userID uint64) (bool, error) {
	var one int
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE id=? AND is_active=1 AND deleted_at IS NULL LIMIT 1",
		userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err, nil)
	}
	return true, nil
}
