// Package memory is an in-process implementation of the booking stores.
// It backs STORE=memory for local runs and the service tests. Session
// locks behave like row locks: exclusive, held until the unit of work
// ends, and bounded by a wait timeout that surfaces as model.ErrBusy.
// Writes become visible to other goroutines immediately and are undone on
// rollback, so plain reads behave like READ UNCOMMITTED.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// DefaultLockWait matches the MySQL lock wait configured for the service.
const DefaultLockWait = 3 * time.Second

var errNoTx = errors.New("memory: locking read outside a transaction")

// Store holds all tables.
type Store struct {
	mu           sync.Mutex
	sessions     map[uint64]*model.Session
	reservations map[uint64]*model.Reservation
	users        map[uint64]*model.User
	coupons      map[uint64]*model.Coupon
	balances     map[uint64]int64
	deductions   map[uint64]model.PointDeduction // by reservation id
	nextResID    uint64
	nextCouponID uint64

	lockMu   sync.Mutex
	locks    map[uint64]chan struct{}
	lockWait time.Duration
}

// New returns an empty store. A lockWait of zero selects DefaultLockWait.
func New(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Store{
		sessions:     make(map[uint64]*model.Session),
		reservations: make(map[uint64]*model.Reservation),
		users:        make(map[uint64]*model.User),
		coupons:      make(map[uint64]*model.Coupon),
		balances:     make(map[uint64]int64),
		deductions:   make(map[uint64]model.PointDeduction),
		locks:        make(map[uint64]chan struct{}),
		lockWait:     lockWait,
	}
}

type txKey struct{}

type tx struct {
	held map[uint64]chan struct{}
	undo []func()
}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTx runs fn as one unit of work. A nested call joins the outer one.
// Writes are undone unless fn returns nil; locks are released either way,
// including when fn panics.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	t := &tx{held: make(map[uint64]chan struct{})}
	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			for i := len(t.undo) - 1; i >= 0; i-- {
				t.undo[i]()
			}
			s.mu.Unlock()
		}
		for _, ch := range t.held {
			<-ch
		}
	}()
	err = fn(context.WithValue(ctx, txKey{}, t))
	committed = err == nil
	return err
}

// record registers an undo step; s.mu must be held.
func record(ctx context.Context, undo func()) {
	if t := txFrom(ctx); t != nil {
		t.undo = append(t.undo, undo)
	}
}

func (s *Store) lockSession(ctx context.Context, id uint64) error {
	t := txFrom(ctx)
	if t == nil {
		return errNoTx
	}
	if _, ok := t.held[id]; ok {
		return nil
	}
	s.lockMu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.lockMu.Unlock()

	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		t.held[id] = ch
		return nil
	case <-timer.C:
		return model.ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddSession seeds a session.
func (s *Store) AddSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.sessions[sess.ID] = &cp
}

// AddUser seeds a user.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
}

// AddCoupon seeds a coupon and returns its id.
func (s *Store) AddCoupon(c model.Coupon) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextCouponID++
		c.ID = s.nextCouponID
	} else if c.ID > s.nextCouponID {
		s.nextCouponID = c.ID
	}
	cp := c
	s.coupons[c.ID] = &cp
	return c.ID
}

// SetPoints sets a user's point balance.
func (s *Store) SetPoints(userID uint64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
}

// Points returns a user's point balance.
func (s *Store) Points(userID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

// Coupons returns copies of userID's coupons.
func (s *Store) Coupons(userID uint64) []model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Coupon
	for _, c := range s.coupons {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out
}

// Sessions returns the session store view.
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Reservations returns the reservation store view.
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s: s} }

// Users returns the user directory view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// CouponLedger returns the coupon ledger view.
func (s *Store) CouponLedger() *CouponRepo { return &CouponRepo{s: s} }

// PointLedger returns the point ledger view.
func (s *Store) PointLedger() *PointRepo { return &PointRepo{s: s} }
