package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// ReservationRepo implements service.ReservationStore.
type ReservationRepo struct{ s *Store }

func clone(r *model.Reservation) *model.Reservation {
	cp := *r
	return &cp
}

// refTaken reports whether another reservation carries res's payment
// ref, mirroring the unique key in MySQL. s.mu must be held.
func (r *ReservationRepo) refTaken(res *model.Reservation) bool {
	if res.PaymentRef == nil {
		return false
	}
	for id, other := range r.s.reservations {
		if id != res.ID && other.PaymentRef != nil && *other.PaymentRef == *res.PaymentRef {
			return true
		}
	}
	return false
}

func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[res.SessionID]; !ok {
		return model.ErrSessionNotFound
	}
	if r.refTaken(res) {
		return model.ErrPaymentRefUsed
	}
	r.s.nextResID++
	res.ID = r.s.nextResID
	id := res.ID
	r.s.reservations[id] = clone(res)
	record(ctx, func() { delete(r.s.reservations, id) })
	return nil
}

func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.reservations[res.ID]
	if !ok {
		return model.ErrReservationNotFound
	}
	if r.refTaken(res) {
		return model.ErrPaymentRefUsed
	}
	id := res.ID
	r.s.reservations[id] = clone(res)
	record(ctx, func() { r.s.reservations[id] = prev })
	return nil
}

func (r *ReservationRepo) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return clone(res), nil
}

// GetByIDForUpdate relies on the caller holding the session lock, which
// covers every reservation of that session.
func (r *ReservationRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	if txFrom(ctx) == nil {
		return nil, errNoTx
	}
	return r.GetByID(ctx, id)
}

func (r *ReservationRepo) FindBySessionAndUser(_ context.Context, sessionID, userID uint64) ([]*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Reservation
	for _, res := range r.s.reservations {
		if res.SessionID == sessionID && res.UserID == userID {
			out = append(out, clone(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReservationRepo) FindByPaymentRef(_ context.Context, ref string) (*model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.reservations {
		if res.PaymentRef != nil && *res.PaymentRef == ref {
			return clone(res), nil
		}
	}
	return nil, model.ErrReservationNotFound
}

func (r *ReservationRepo) ListExpiredHoldIDs(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var cands []*model.Reservation
	for _, res := range r.s.reservations {
		if res.Status == model.StatusHold && res.HoldExpiredAt != nil && res.HoldExpiredAt.Before(now) {
			cands = append(cands, res)
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].HoldExpiredAt.Equal(*cands[j].HoldExpiredAt) {
			return cands[i].ID < cands[j].ID
		}
		return cands[i].HoldExpiredAt.Before(*cands[j].HoldExpiredAt)
	})
	return idsOf(cands, limit), nil
}

func (r *ReservationRepo) ListCompletableIDs(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var cands []*model.Reservation
	for _, res := range r.s.reservations {
		if res.Status != model.StatusPaid {
			continue
		}
		if sess, ok := r.s.sessions[res.SessionID]; ok && sess.HasStarted(now) {
			cands = append(cands, res)
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
	return idsOf(cands, limit), nil
}

func idsOf(rs []*model.Reservation, limit int) []uint64 {
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	ids := make([]uint64, 0, len(rs))
	for _, res := range rs {
		ids = append(ids, res.ID)
	}
	return ids
}

// List filters like the SQL store: newest first, session start bounds
// inclusive.
func (r *ReservationRepo) List(_ context.Context, f model.ReservationFilter) ([]model.ReservationView, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.ReservationView
	for _, res := range r.s.reservations {
		sess := r.s.sessions[res.SessionID]
		if sess == nil {
			continue
		}
		if f.UserID != 0 && res.UserID != f.UserID {
			continue
		}
		if f.SessionID != 0 && res.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		if f.From != nil && sess.StartAt.Before(*f.From) {
			continue
		}
		if f.To != nil && sess.StartAt.After(*f.To) {
			continue
		}
		all = append(all, model.ReservationView{
			Reservation:  *res,
			SessionTitle: sess.Title,
			StartAt:      sess.StartAt,
			Price:        sess.Price,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	start := f.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Size
	if f.Size <= 0 || end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}
