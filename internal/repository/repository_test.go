package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
)

var (
	ctx  = context.Background()
	now0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func sessionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "capacity", "reserved_count", "start_at", "price", "created_at", "updated_at"}).
		AddRow(1, "Knife skills", 10, 4, now0.Add(48*time.Hour), 50000, now0, now0)
}

func TestWithTx_LockedReadCommits(t *testing.T) {
	db, mock := newMock(t)
	sessions := NewSessionRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE id = ? FOR UPDATE")).
		WithArgs(1).WillReturnRows(sessionRows())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions SET reserved_count = ?")).
		WithArgs(5, 1, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxManager(db).WithTx(ctx, func(ctx context.Context) error {
		s, err := sessions.GetByIDForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 6, s.RemainingSeats())
		return sessions.UpdateReservedCount(ctx, s.ID, s.ReservedCount+1)
	})
	require.NoError(t, err)
}

func TestWithTx_LockTimeoutIsBusyAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	sessions := NewSessionRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	err := NewTxManager(db).WithTx(ctx, func(ctx context.Context) error {
		_, err := sessions.GetByIDForUpdate(ctx, 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrBusy))
	assert.True(t, model.IsRetryable(err))
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	db, mock := newMock(t)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := txm.WithTx(ctx, func(ctx context.Context) error {
		return txm.WithTx(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestLockedReadOutsideTx(t *testing.T) {
	db, _ := newMock(t)
	_, err := NewSessionRepo(db).GetByIDForUpdate(ctx, 1)
	assert.ErrorIs(t, err, ErrTxRequired)
	_, err = NewReservationRepo(db).GetByIDForUpdate(ctx, 1)
	assert.ErrorIs(t, err, ErrTxRequired)
}

func TestSessionRepo_NotFoundAndRange(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sessions WHERE id = ?")).
		WithArgs(9).WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByID(ctx, 9)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.True(t, model.IsNotFound(err))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_sessions")).
		WithArgs(11, 1, 11).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateReservedCount(ctx, 1, 11)
	assert.True(t, model.IsValidation(err))
}

func TestReservationRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	hold := model.NewHold(1, 7, now0, 10*time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_reservations")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	require.NoError(t, repo.Create(ctx, hold))
	assert.Equal(t, uint64(42), hold.ID)

	paid := model.NewPaid(1, 8, now0, "pi_dup")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_reservations")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.ErrorIs(t, repo.Create(ctx, paid), model.ErrPaymentRefUsed)
}

func reservationCols(extra ...string) []string {
	cols := []string{"id", "session_id", "user_id", "status", "hold_expired_at", "paid_at", "canceled_at",
		"completed_at", "cancel_requested_at", "cancel_reason", "payment_ref", "created_at", "updated_at"}
	return append(cols, extra...)
}

func TestReservationRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	deadline := now0.Add(10 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_reservations WHERE id = ?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(reservationCols()).
			AddRow(3, 1, 7, "HOLD", deadline, nil, nil, nil, nil, "", nil, now0, now0))

	res, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHold, res.Status)
	require.NotNil(t, res.HoldExpiredAt)
	assert.True(t, res.HoldExpiredAt.Equal(deadline))
	assert.Nil(t, res.PaymentRef)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_ref = ?")).
		WithArgs("pi_none").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByPaymentRef(ctx, "pi_none")
	assert.ErrorIs(t, err, model.ErrReservationNotFound)
}

func TestReservationRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	from := now0
	f := model.ReservationFilter{UserID: 7, Status: model.StatusPaid, From: &from, Page: 2, Size: 5}
	f.Normalize()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(uint64(7), "PAID", now0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?")).
		WithArgs(uint64(7), "PAID", now0, 5, 5).
		WillReturnRows(sqlmock.NewRows(reservationCols("title", "start_at", "price")).
			AddRow(11, 1, 7, "PAID", nil, now0, nil, nil, nil, "", "pi_1", now0, now0,
				"Knife skills", now0.Add(48*time.Hour), 50000))

	items, total, err := repo.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Knife skills", items[0].SessionTitle)
	assert.Equal(t, int64(50000), items[0].Price)
	require.NotNil(t, items[0].PaymentRef)
	assert.Equal(t, "pi_1", *items[0].PaymentRef)
}

func TestPointRepo_Deduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPointRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_deductions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_points SET balance = balance - ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, model.IsValidation(repo.Deduct(ctx, 7, 500, 11, now0)))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_deductions")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	assert.NoError(t, repo.Deduct(ctx, 7, 500, 11, now0))

	assert.NoError(t, repo.Deduct(ctx, 7, 0, 11, now0))
}

func TestCouponRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCouponRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO coupons")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	assert.NoError(t, repo.IssueReward(ctx, 7, 11, now0))

	cols := []string{"id", "user_id", "type", "value", "expires_at", "used_at", "used_reservation_id", "reward_reservation_id", "created_at"}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE coupons SET used_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM coupons WHERE id = ?")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, 7, "FIXED", 1000, nil, now0, 11, nil, now0))
	assert.NoError(t, repo.MarkUsed(ctx, 5, 11, now0))

	_, err := repo.Discount(ctx, 7, 5, 50000, now0)
	assert.ErrorIs(t, err, ErrTxRequired)
}

func TestUserRepo_Exists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=? AND is_active=1")).
		WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	ok, err := repo.Exists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(8).WillReturnError(sql.ErrNoRows)
	ok, err = repo.Exists(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}
