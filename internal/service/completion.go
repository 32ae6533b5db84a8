package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

// CompletionSweep marks PAID reservations COMPLETED once their class has
// started and grants the completion reward coupon. The seat stays counted.
type CompletionSweep struct {
	deps      Deps
	capacity  *CapacityStore
	batchSize int
	log       *zap.Logger
}

// NewCompletionSweep panics on nil required dependencies.
func NewCompletionSweep(deps Deps, batchSize int) *CompletionSweep {
	deps.check("NewCompletionSweep")
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &CompletionSweep{
		deps:      deps,
		capacity:  NewCapacityStore(deps.Tx, deps.Sessions, deps.Log),
		batchSize: batchSize,
		log:       deps.Log,
	}
}

// CompleteStarted completes every PAID reservation whose session started
// at or before now. Rows are handled one unit of work at a time.
func (c *CompletionSweep) CompleteStarted(ctx context.Context, now time.Time) (n int, err error) {
	ctx, span := startSpan(ctx, "CompletionSweep.CompleteStarted")
	defer func() { endSpan(span, err) }()

	ids, err := c.deps.Reservations.ListCompletableIDs(ctx, now, c.batchSize)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		res, err := c.completeOne(ctx, id, now)
		if err != nil {
			c.log.Error("complete reservation failed", zap.Uint64("reservation_id", id), zap.Error(err))
			continue
		}
		if res != nil {
			n++
			publishEvent(ctx, c.deps.Events, c.log, now, queue.EventCompleted, res, "")
		}
	}
	if n > 0 {
		c.log.Info("completed reservations", zap.Int("count", n))
	}
	return n, nil
}

func (c *CompletionSweep) completeOne(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	cand, err := c.deps.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var out *model.Reservation
	err = c.capacity.WithSessionLock(ctx, cand.SessionID, func(ctx context.Context, sess *model.Session) error {
		if !sess.HasStarted(now) {
			return nil
		}
		locked, err := c.deps.Reservations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != model.StatusPaid {
			return nil
		}
		if err := locked.MarkCompleted(now); err != nil {
			return err
		}
		if err := c.deps.Reservations.Update(ctx, locked); err != nil {
			return err
		}
		if err := c.deps.Coupons.IssueReward(ctx, locked.UserID, locked.ID, now); err != nil {
			return err
		}
		out = locked
		return nil
	})
	return out, err
}
