package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/clock"
	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

// DefaultHoldTTL is how long an unpaid hold keeps its seat.
const DefaultHoldTTL = 10 * time.Minute

var tracer = otel.Tracer("github.com/iliyamo/class-booking/internal/service")

// Deps bundles the stores and collaborators of the booking services.
// Events is optional.
type Deps struct {
	Tx           TxManager
	Sessions     SessionStore
	Reservations ReservationStore
	Users        UserDirectory
	Coupons      CouponLedger
	Points       PointLedger
	Events       EventPublisher
	Clock        clock.Clock
	Log          *zap.Logger
}

func (d *Deps) check(name string) {
	if d.Tx == nil || d.Sessions == nil || d.Reservations == nil || d.Users == nil ||
		d.Coupons == nil || d.Points == nil || d.Clock == nil {
		panic("nil dependency passed to " + name)
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
}

// ReservationService drives reservations through their lifecycle. All
// seat-affecting steps run under the session lock, so two requests for the
// same session are serialized while different sessions proceed in
// parallel.
type ReservationService struct {
	deps     Deps
	capacity *CapacityStore
	holdTTL  time.Duration
	log      *zap.Logger
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithHoldTTL overrides DefaultHoldTTL.
func WithHoldTTL(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// NewReservationService panics on nil required dependencies.
func NewReservationService(deps Deps, opts ...Option) *ReservationService {
	deps.check("NewReservationService")
	s := &ReservationService{
		deps:     deps,
		capacity: NewCapacityStore(deps.Tx, deps.Sessions, deps.Log),
		holdTTL:  DefaultHoldTTL,
		log:      deps.Log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// HoldTTL returns the configured hold duration.
func (s *ReservationService) HoldTTL() time.Duration { return s.holdTTL }

// CreateHold reserves one seat of sessionID for userID for the hold
// duration. A still-valid hold by the same user is returned unchanged.
func (s *ReservationService) CreateHold(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	res, _, err := s.PlaceHold(ctx, sessionID, userID)
	return res, err
}

// PlaceHold is CreateHold that also reports whether a new hold was
// created (false when an active hold was returned).
func (s *ReservationService) PlaceHold(ctx context.Context, sessionID, userID uint64) (res *model.Reservation, created bool, err error) {
	ctx, span := startSpan(ctx, "ReservationService.CreateHold",
		attribute.Int64("session_id", int64(sessionID)),
		attribute.Int64("user_id", int64(userID)))
	defer func() { endSpan(span, err) }()

	if sessionID == 0 {
		return nil, false, model.NewValidationError("session_id", "is required")
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, false, err
	}

	err = s.capacity.WithSessionLock(ctx, sessionID, func(ctx context.Context, sess *model.Session) error {
		now := s.deps.Clock.Now()
		if sess.HasStarted(now) {
			return model.ErrSessionAlreadyStarted
		}
		existing, err := s.deps.Reservations.FindBySessionAndUser(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		active, stale, err := classifyExisting(existing, now)
		if err != nil {
			return err
		}
		if active != nil {
			res = active
			return nil
		}
		if err := s.expireStale(ctx, sess, stale, now); err != nil {
			return err
		}
		if err := s.capacity.IncreaseReserved(ctx, sess); err != nil {
			return err
		}
		hold := model.NewHold(sessionID, userID, now, s.holdTTL)
		if err := s.deps.Reservations.Create(ctx, hold); err != nil {
			return err
		}
		res = hold
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.publish(ctx, queue.EventHoldCreated, res, "")
	}
	return res, created, nil
}

// Cancel records the owner's request to cancel a PAID reservation. The
// seat stays reserved until an admin approves the request.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, userID uint64, reason string) (res *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "ReservationService.Cancel",
		attribute.Int64("reservation_id", int64(reservationID)))
	defer func() { endSpan(span, err) }()

	r, err := s.ownedReservation(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if err := r.CheckTransition(model.StatusCancelRequested); err != nil {
		return nil, err
	}

	err = s.capacity.WithSessionLock(ctx, r.SessionID, func(ctx context.Context, sess *model.Session) error {
		now := s.deps.Clock.Now()
		if sess.HasStarted(now) {
			return model.ErrSessionAlreadyStarted
		}
		locked, err := s.deps.Reservations.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := locked.RequestCancel(now, reason); err != nil {
			return err
		}
		if err := s.deps.Reservations.Update(ctx, locked); err != nil {
			return err
		}
		res = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCancelRequested, res, res.CancelReason)
	return res, nil
}

// ApproveCancel is the admin decision that finalizes a cancellation and
// releases the seat. It is refused once the class has started.
func (s *ReservationService) ApproveCancel(ctx context.Context, reservationID uint64) (res *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "ReservationService.ApproveCancel",
		attribute.Int64("reservation_id", int64(reservationID)))
	defer func() { endSpan(span, err) }()

	r, err := s.deps.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := r.CheckTransition(model.StatusCanceled); err != nil {
		return nil, err
	}

	err = s.capacity.WithSessionLock(ctx, r.SessionID, func(ctx context.Context, sess *model.Session) error {
		now := s.deps.Clock.Now()
		locked, err := s.deps.Reservations.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := locked.CheckTransition(model.StatusCanceled); err != nil {
			return err
		}
		if sess.HasStarted(now) {
			return model.ErrSessionAlreadyStarted
		}
		if err := locked.ApproveCancel(now); err != nil {
			return err
		}
		if err := s.deps.Reservations.Update(ctx, locked); err != nil {
			return err
		}
		if err := s.capacity.DecreaseReserved(ctx, sess); err != nil {
			return err
		}
		res = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCanceled, res, res.CancelReason)
	return res, nil
}

// RejectCancel returns a CANCEL_REQUESTED reservation to PAID. The seat
// count does not change.
func (s *ReservationService) RejectCancel(ctx context.Context, reservationID uint64) (res *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "ReservationService.RejectCancel",
		attribute.Int64("reservation_id", int64(reservationID)))
	defer func() { endSpan(span, err) }()

	r, err := s.deps.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.StatusCancelRequested {
		return nil, r.CheckTransition(model.StatusCanceled)
	}

	err = s.capacity.WithSessionLock(ctx, r.SessionID, func(ctx context.Context, _ *model.Session) error {
		locked, err := s.deps.Reservations.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := locked.RejectCancel(s.deps.Clock.Now()); err != nil {
			return err
		}
		if err := s.deps.Reservations.Update(ctx, locked); err != nil {
			return err
		}
		res = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCancelRejected, res, "")
	return res, nil
}

func (s *ReservationService) checkUser(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return model.NewValidationError("user_id", "is required")
	}
	ok, err := s.deps.Users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUserNotFound
	}
	return nil
}

// ownedReservation hides other users' reservations behind not-found.
func (s *ReservationService) ownedReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	r, err := s.deps.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, model.ErrReservationNotFound
	}
	return r, nil
}

// classifyExisting applies the per-user guards to the user's reservations
// on one session. It returns a still-valid hold to reuse and the holds
// whose deadline passed without being reaped yet.
func classifyExisting(existing []*model.Reservation, now time.Time) (active *model.Reservation, stale []*model.Reservation, err error) {
	for _, r := range existing {
		switch r.Status {
		case model.StatusPaid:
			return nil, nil, model.ErrAlreadyBooked
		case model.StatusCancelRequested:
			return nil, nil, model.ErrPendingCancellation
		}
	}
	for _, r := range existing {
		if r.Status != model.StatusHold {
			continue
		}
		if r.ActiveHold(now) {
			active = r
			continue
		}
		stale = append(stale, r)
	}
	return active, stale, nil
}

// expireStale retires timed-out holds found under the session lock so the
// user's new reservation does not count twice.
func (s *ReservationService) expireStale(ctx context.Context, sess *model.Session, stale []*model.Reservation, now time.Time) error {
	for _, r := range stale {
		if err := r.MarkExpired(now); err != nil {
			return err
		}
		if err := s.deps.Reservations.Update(ctx, r); err != nil {
			return err
		}
		if err := s.capacity.DecreaseReserved(ctx, sess); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReservationService) publish(ctx context.Context, typ string, r *model.Reservation, reason string) {
	publishEvent(ctx, s.deps.Events, s.log, s.deps.Clock.Now(), typ, r, reason)
}

func publishEvent(ctx context.Context, p EventPublisher, log *zap.Logger, now time.Time, typ string, r *model.Reservation, reason string) {
	ev := queue.NewReservationEvent(typ, r.ID, r.SessionID, r.UserID, string(r.Status), now)
	ev.Reason = reason
	if r.PaymentRef != nil {
		ev.PaymentRef = *r.PaymentRef
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("publish reservation event failed",
			zap.String("type", typ),
			zap.Uint64("reservation_id", r.ID),
			zap.Error(err),
		)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, model.ErrValidation) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
