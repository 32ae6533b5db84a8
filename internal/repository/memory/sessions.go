package memory

import (
	"context"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// SessionRepo implements service.SessionStore.
type SessionRepo struct{ s *Store }

func (r *SessionRepo) GetByID(_ context.Context, id uint64) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r *SessionRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Session, error) {
	r.s.mu.Lock()
	_, ok := r.s.sessions[id]
	r.s.mu.Unlock()
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if err := r.s.lockSession(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *SessionRepo) UpdateReservedCount(ctx context.Context, id uint64, reserved int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if reserved < 0 || reserved > sess.Capacity {
		return model.NewValidationError("reserved_count", "out of range")
	}
	prev, prevAt := sess.ReservedCount, sess.UpdatedAt
	sess.ReservedCount = reserved
	sess.UpdatedAt = time.Now().UTC()
	record(ctx, func() {
		sess.ReservedCount = prev
		sess.UpdatedAt = prevAt
	})
	return nil
}
