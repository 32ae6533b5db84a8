package queue

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts TCP connections and never answers the handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublisher_UnresponsiveBrokerDoesNotBlockCallers(t *testing.T) {
	p := NewPublisher(silentBroker(t), nil, WithDialTimeout(150*time.Millisecond))

	var wg sync.WaitGroup
	durations := make([]time.Duration, 8)
	for i := range durations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			start := time.Now()
			err := p.Publish(ctx, NewReservationEvent(EventHoldCreated, uint64(i+1), 1, 7, "HOLD", time.Now()))
			durations[i] = time.Since(start)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	for i, d := range durations {
		assert.Less(t, d, 50*time.Millisecond, "publish %d", i)
	}

	// The first dial times out; the rest are dropped while backing off.
	assert.Eventually(t, func() bool { return p.Dropped() == int64(len(durations)) },
		2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))

	err := p.Publish(context.Background(), NewReservationEvent(EventPaid, 1, 1, 7, "PAID", time.Now()))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestPublisher_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	p := NewPublisher(silentBroker(t), nil, WithDialTimeout(time.Second), WithBuffer(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})

	var full int
	for i := 0; i < 5; i++ {
		err := p.Publish(context.Background(), NewReservationEvent(EventPaid, uint64(i+1), 1, 7, "PAID", time.Now()))
		if err != nil {
			assert.ErrorIs(t, err, ErrPublisherFull)
			full++
		}
	}
	// one event is in flight, one buffered, the rest rejected
	assert.GreaterOrEqual(t, full, 3)
}
