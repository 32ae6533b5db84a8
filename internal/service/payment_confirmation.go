package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

// ConfirmPaymentInput is an externally verified payment. ReservationID
// names the hold being paid; when it is zero the payment books SessionID
// directly.
type ConfirmPaymentInput struct {
	ReservationID uint64
	SessionID     uint64
	UserID        uint64
	PaymentRef    string
	PaidAmount    int64
	Quantity      int
	CouponID      uint64
	PointsUsed    int64
}

func (in *ConfirmPaymentInput) normalize() error {
	in.PaymentRef = strings.TrimSpace(in.PaymentRef)
	if in.PaymentRef == "" {
		return model.NewValidationError("payment_ref", "is required")
	}
	if in.UserID == 0 {
		return model.NewValidationError("user_id", "is required")
	}
	if in.ReservationID == 0 && in.SessionID == 0 {
		return model.NewValidationError("session_id", "is required without reservation_id")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity != 1 {
		return model.NewValidationError("quantity", "must be 1")
	}
	if in.PaidAmount < 0 {
		return model.NewValidationError("paid_amount", "must not be negative")
	}
	if in.PointsUsed < 0 {
		return model.NewValidationError("points_used", "must not be negative")
	}
	return nil
}

// ExpectedAmount returns price*quantity minus the coupon discount and the
// points used.
func (s *ReservationService) ExpectedAmount(ctx context.Context, sess *model.Session, in ConfirmPaymentInput) (int64, error) {
	gross := sess.Price * int64(in.Quantity)
	var discount int64
	if in.CouponID != 0 {
		d, err := s.deps.Coupons.Discount(ctx, in.UserID, in.CouponID, gross, s.deps.Clock.Now())
		if err != nil {
			return 0, err
		}
		discount = d
	}
	expected := gross - discount - in.PointsUsed
	if expected < 0 {
		return 0, model.NewValidationError("points_used", "exceeds the amount due")
	}
	return expected, nil
}

// ConfirmPayment turns a verified payment into a PAID reservation. The
// amount check, the seat change, the coupon and the point deduction all
// happen in one unit of work under the session lock. Repeating a
// confirmation that already succeeded with the same payment reference
// returns the PAID reservation without consuming anything again.
func (s *ReservationService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (res *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "ReservationService.ConfirmPayment",
		attribute.Int64("reservation_id", int64(in.ReservationID)),
		attribute.Int64("session_id", int64(in.SessionID)))
	defer func() { endSpan(span, err) }()

	if err := in.normalize(); err != nil {
		return nil, err
	}

	prior, err := s.deps.Reservations.FindByPaymentRef(ctx, in.PaymentRef)
	switch {
	case err == nil:
		return s.replay(prior, in)
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}

	sessionID := in.SessionID
	if in.ReservationID != 0 {
		r, err := s.ownedReservation(ctx, in.ReservationID, in.UserID)
		if err != nil {
			return nil, err
		}
		sessionID = r.SessionID
	} else if err := s.checkUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	replayed := false
	err = s.capacity.WithSessionLock(ctx, sessionID, func(ctx context.Context, sess *model.Session) error {
		var err error
		if in.ReservationID != 0 {
			res, replayed, err = s.payHold(ctx, sess, in)
		} else {
			res, replayed, err = s.payDirect(ctx, sess, in)
		}
		if err != nil || replayed {
			return err
		}
		return s.consumeDiscounts(ctx, res.ID, in)
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		s.publish(ctx, queue.EventPaid, res, "")
	}
	return res, nil
}

// replay answers a confirmation whose payment reference is already stored.
func (s *ReservationService) replay(prior *model.Reservation, in ConfirmPaymentInput) (*model.Reservation, error) {
	if prior.UserID != in.UserID || (in.ReservationID != 0 && prior.ID != in.ReservationID) {
		return nil, model.ErrPaymentRefUsed
	}
	return prior, nil
}

func samePayment(r *model.Reservation, ref string) bool {
	return r.PaymentRef != nil && *r.PaymentRef == ref
}

// payHold promotes the named HOLD to PAID.
func (s *ReservationService) payHold(ctx context.Context, sess *model.Session, in ConfirmPaymentInput) (*model.Reservation, bool, error) {
	locked, err := s.deps.Reservations.GetByIDForUpdate(ctx, in.ReservationID)
	if err != nil {
		return nil, false, err
	}
	if locked.Status == model.StatusPaid && samePayment(locked, in.PaymentRef) {
		return locked, true, nil
	}
	if locked.Status != model.StatusHold {
		return nil, false, model.ErrHoldNoLongerValid
	}
	if err := s.checkAmount(ctx, sess, in); err != nil {
		return nil, false, err
	}
	if err := locked.MarkPaid(s.deps.Clock.Now(), in.PaymentRef); err != nil {
		return nil, false, err
	}
	if err := s.deps.Reservations.Update(ctx, locked); err != nil {
		return nil, false, err
	}
	return locked, false, nil
}

// payDirect books a seat that was paid for without a prior hold. An active
// hold by the same user is promoted instead of taking a second seat.
func (s *ReservationService) payDirect(ctx context.Context, sess *model.Session, in ConfirmPaymentInput) (*model.Reservation, bool, error) {
	now := s.deps.Clock.Now()
	existing, err := s.deps.Reservations.FindBySessionAndUser(ctx, sess.ID, in.UserID)
	if err != nil {
		return nil, false, err
	}
	for _, r := range existing {
		if r.Status == model.StatusPaid && samePayment(r, in.PaymentRef) {
			return r, true, nil
		}
	}
	if sess.HasStarted(now) {
		return nil, false, model.ErrSessionAlreadyStarted
	}
	active, stale, err := classifyExisting(existing, now)
	if err != nil {
		return nil, false, err
	}
	if err := s.checkAmount(ctx, sess, in); err != nil {
		return nil, false, err
	}
	if err := s.expireStale(ctx, sess, stale, now); err != nil {
		return nil, false, err
	}

	if active != nil {
		if err := active.MarkPaid(now, in.PaymentRef); err != nil {
			return nil, false, err
		}
		if err := s.deps.Reservations.Update(ctx, active); err != nil {
			return nil, false, err
		}
		return active, false, nil
	}

	if err := s.capacity.IncreaseReserved(ctx, sess); err != nil {
		return nil, false, err
	}
	r := model.NewPaid(sess.ID, in.UserID, now, in.PaymentRef)
	if err := s.deps.Reservations.Create(ctx, r); err != nil {
		return nil, false, err
	}
	return r, false, nil
}

func (s *ReservationService) checkAmount(ctx context.Context, sess *model.Session, in ConfirmPaymentInput) error {
	expected, err := s.ExpectedAmount(ctx, sess, in)
	if err != nil {
		return err
	}
	if expected != in.PaidAmount {
		return &model.AmountMismatchError{Expected: expected, Paid: in.PaidAmount}
	}
	return nil
}

func (s *ReservationService) consumeDiscounts(ctx context.Context, reservationID uint64, in ConfirmPaymentInput) error {
	now := s.deps.Clock.Now()
	if in.CouponID != 0 {
		if err := s.deps.Coupons.MarkUsed(ctx, in.CouponID, reservationID, now); err != nil {
			return err
		}
	}
	if in.PointsUsed > 0 {
		if err := s.deps.Points.Deduct(ctx, in.UserID, in.PointsUsed, reservationID, now); err != nil {
			return err
		}
	}
	return nil
}
