package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/model"
)

// CapacityStore is the only writer of Session.ReservedCount. Every method
// except WithSessionLock expects to run inside a unit of work that already
// holds the session lock.
type CapacityStore struct {
	tx       TxManager
	sessions SessionStore
	log      *zap.Logger
}

// NewCapacityStore panics on nil dependencies.
func NewCapacityStore(tx TxManager, sessions SessionStore, log *zap.Logger) *CapacityStore {
	if tx == nil || sessions == nil {
		panic("nil dependency passed to NewCapacityStore")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CapacityStore{tx: tx, sessions: sessions, log: log}
}

// WithSessionLock opens a unit of work, locks the session row and runs fn
// with the locked session. The lock is released when the unit of work
// commits or rolls back, whichever way fn returns.
func (c *CapacityStore) WithSessionLock(ctx context.Context, sessionID uint64, fn func(ctx context.Context, s *model.Session) error) error {
	return c.tx.WithTx(ctx, func(ctx context.Context) error {
		s, err := c.LockForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

// LockForUpdate takes the exclusive session lock within the current unit
// of work.
func (c *CapacityStore) LockForUpdate(ctx context.Context, sessionID uint64) (*model.Session, error) {
	return c.sessions.GetByIDForUpdate(ctx, sessionID)
}

// IncreaseReserved takes one seat or fails with model.ErrCapacityExceeded.
func (c *CapacityStore) IncreaseReserved(ctx context.Context, s *model.Session) error {
	if s.RemainingSeats() <= 0 {
		return model.ErrCapacityExceeded
	}
	if err := c.sessions.UpdateReservedCount(ctx, s.ID, s.ReservedCount+1); err != nil {
		return err
	}
	s.ReservedCount++
	return nil
}

// DecreaseReserved gives one seat back. The count never goes below zero;
// an attempt to do so means a seat was released twice and is logged.
func (c *CapacityStore) DecreaseReserved(ctx context.Context, s *model.Session) error {
	if s.ReservedCount <= 0 {
		c.log.Error("reserved count would drop below zero",
			zap.Uint64("session_id", s.ID),
			zap.Int("reserved_count", s.ReservedCount),
			zap.Int("capacity", s.Capacity),
		)
		return nil
	}
	if err := c.sessions.UpdateReservedCount(ctx, s.ID, s.ReservedCount-1); err != nil {
		return err
	}
	s.ReservedCount--
	return nil
}
