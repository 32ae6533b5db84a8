package service

import (
	"context"

	"github.com/iliyamo/class-booking/internal/clock"
	"github.com/iliyamo/class-booking/internal/model"
)

// Page is one page of a reservation list.
type Page struct {
	Items []model.ReservationView
	Total int64
	Page  int
	Size  int
}

// ReservationQueryService serves read-only projections. It never takes
// the session lock.
type ReservationQueryService struct {
	sessions     SessionStore
	reservations ReservationStore
	clock        clock.Clock
}

// NewReservationQueryService panics on nil dependencies.
func NewReservationQueryService(sessions SessionStore, reservations ReservationStore, clk clock.Clock) *ReservationQueryService {
	if sessions == nil || reservations == nil || clk == nil {
		panic("nil dependency passed to NewReservationQueryService")
	}
	return &ReservationQueryService{sessions: sessions, reservations: reservations, clock: clk}
}

// ListForUser lists userID's reservations.
func (q *ReservationQueryService) ListForUser(ctx context.Context, userID uint64, f model.ReservationFilter) (*Page, error) {
	if userID == 0 {
		return nil, model.NewValidationError("user_id", "is required")
	}
	f.UserID = userID
	return q.list(ctx, f)
}

// ListAll lists reservations across users for admins.
func (q *ReservationQueryService) ListAll(ctx context.Context, f model.ReservationFilter) (*Page, error) {
	return q.list(ctx, f)
}

// ListCancelRequests lists reservations awaiting an admin decision.
func (q *ReservationQueryService) ListCancelRequests(ctx context.Context, page, size int) (*Page, error) {
	return q.list(ctx, model.ReservationFilter{Status: model.StatusCancelRequested, Page: page, Size: size})
}

func (q *ReservationQueryService) list(ctx context.Context, f model.ReservationFilter) (*Page, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, model.NewValidationError("to", "must not be before from")
	}
	f.Normalize()
	items, total, err := q.reservations.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: f.Page, Size: f.Size}, nil
}

// GetForUser returns one of userID's reservations. Reservations of other
// users are reported as not found.
func (q *ReservationQueryService) GetForUser(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	r, err := q.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, model.ErrReservationNotFound
	}
	return r, nil
}

// Availability returns the seat projection of a session.
func (q *ReservationQueryService) Availability(ctx context.Context, sessionID uint64) (model.Availability, error) {
	s, err := q.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return model.Availability{}, err
	}
	return s.AvailabilityAt(q.clock.Now()), nil
}
