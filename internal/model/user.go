package model

import "time"

// User is the slice of the `users` table the booking engine reads. Account
// management lives in another service; here we only need to know whether
// a user may book.
//
// Fields:
//  ID        – primary key identifier.
//  Role      – CUSTOMER or ADMIN.
//  IsActive  – false for suspended accounts.
//  DeletedAt – set when the account was removed.
type User struct {
	ID        uint64     // users.id
	Role      string     // users.role
	IsActive  bool       // users.is_active
	DeletedAt *time.Time // users.deleted_at (nullable)
}

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// CanBook reports whether the account may create reservations.
func (u *User) CanBook() bool {
	return u.IsActive && u.DeletedAt == nil
}
