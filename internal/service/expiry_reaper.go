package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

// DefaultSweepBatch caps how many rows one sweep handles.
const DefaultSweepBatch = 500

// HoldExpiryReaper releases seats of holds that were never paid.
type HoldExpiryReaper struct {
	deps      Deps
	capacity  *CapacityStore
	batchSize int
	log       *zap.Logger
}

// NewHoldExpiryReaper panics on nil required dependencies.
func NewHoldExpiryReaper(deps Deps, batchSize int) *HoldExpiryReaper {
	deps.check("NewHoldExpiryReaper")
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &HoldExpiryReaper{
		deps:      deps,
		capacity:  NewCapacityStore(deps.Tx, deps.Sessions, deps.Log),
		batchSize: batchSize,
		log:       deps.Log,
	}
}

// ExpireHolds expires every HOLD whose deadline is before now and returns
// how many it released. Each hold gets its own unit of work; a failure on
// one row is logged and the sweep moves on. Running it twice releases
// nothing the second time.
func (r *HoldExpiryReaper) ExpireHolds(ctx context.Context, now time.Time) (n int, err error) {
	ctx, span := startSpan(ctx, "HoldExpiryReaper.ExpireHolds")
	defer func() {
		span.SetAttributes(attribute.Int("expired", n))
		endSpan(span, err)
	}()

	ids, err := r.deps.Reservations.ListExpiredHoldIDs(ctx, now, r.batchSize)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		res, err := r.expireOne(ctx, id, now)
		if err != nil {
			r.log.Error("expire hold failed", zap.Uint64("reservation_id", id), zap.Error(err))
			continue
		}
		if res != nil {
			n++
			publishEvent(ctx, r.deps.Events, r.log, now, queue.EventExpired, res, "")
		}
	}
	if n > 0 {
		r.log.Info("expired holds", zap.Int("count", n), zap.Int("candidates", len(ids)))
	}
	return n, nil
}

// expireOne returns nil without error when the hold changed state after
// it was listed.
func (r *HoldExpiryReaper) expireOne(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	cand, err := r.deps.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *model.Reservation
	err = r.capacity.WithSessionLock(ctx, cand.SessionID, func(ctx context.Context, sess *model.Session) error {
		locked, err := r.deps.Reservations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != model.StatusHold || locked.ActiveHold(now) {
			return nil
		}
		if err := locked.MarkExpired(now); err != nil {
			return err
		}
		if err := r.deps.Reservations.Update(ctx, locked); err != nil {
			return err
		}
		if err := r.capacity.DecreaseReserved(ctx, sess); err != nil {
			return err
		}
		out = locked
		return nil
	})
	return out, err
}
