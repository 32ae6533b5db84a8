package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLease deletes the key only if this holder still owns it.
var releaseLease = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lease is a Redis mutex that keeps concurrent instances from sweeping at
// the same time. The TTL bounds how long a crashed holder blocks others.
type Lease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewLease returns a lease on key. A nil client yields a lease that is
// always granted.
func NewLease(rdb *redis.Client, key string, ttl time.Duration) *Lease {
	return &Lease{rdb: rdb, key: key, ttl: ttl}
}

// Acquire tries once to take the lease. On success it returns a release
// func.
func (l *Lease) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	if l == nil || l.rdb == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		_ = releaseLease.Run(context.WithoutCancel(ctx), l.rdb, []string{l.key}, token).Err()
	}, true, nil
}
