// Package clock supplies the current time to the booking engine. All
// business decisions (hold deadlines, "has the class started") read the
// clock through this interface so tests can pin it.
package clock

import (
	"sync"
	"time"
)

// DefaultZone is the business time zone of the platform.
const DefaultZone = "Asia/Seoul"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// Zoned is the production clock. Instants are compared in absolute time;
// the zone only affects how they print and how date filters are parsed.
type Zoned struct {
	loc *time.Location
}

// NewZoned loads the named zone. An empty name selects DefaultZone.
func NewZoned(name string) (*Zoned, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &Zoned{loc: loc}, nil
}

func (z *Zoned) Now() time.Time { return time.Now().In(z.loc) }

// Location returns the business zone.
func (z *Zoned) Location() *time.Location { return z.loc }

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake { return &Fake{now: now} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
