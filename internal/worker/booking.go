package worker

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/class-booking/internal/clock"
	"github.com/iliyamo/class-booking/internal/service"
)

// Lease keys shared by every instance.
const (
	ExpiryLeaseKey     = "booking:lease:hold-expiry"
	CompletionLeaseKey = "booking:lease:completion"
)

// NewExpiryWorker expires lapsed holds every interval.
func NewExpiryWorker(r *service.HoldExpiryReaper, interval time.Duration, rdb *redis.Client, clk clock.Clock) *Worker {
	return New(Config{Name: "hold-expiry", Interval: interval}, r.ExpireHolds,
		NewLease(rdb, ExpiryLeaseKey, leaseTTL(interval)), clk)
}

// NewCompletionWorker completes paid reservations of started classes
// every interval.
func NewCompletionWorker(c *service.CompletionSweep, interval time.Duration, rdb *redis.Client, clk clock.Clock) *Worker {
	return New(Config{Name: "completion", Interval: interval}, c.CompleteStarted,
		NewLease(rdb, CompletionLeaseKey, leaseTTL(interval)), clk)
}

func leaseTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Minute
	}
	return interval
}
