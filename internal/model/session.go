package model

import "time"

// Session is a scheduled cooking class with a fixed number of seats.
// ReservedCount is only ever changed by the capacity store while the
// session row is locked, so 0 <= ReservedCount <= Capacity holds for every
// committed row.
//
// Fields:
//  ID            – primary key identifier.
//  Title         – display name of the class.
//  Capacity      – total seats (at least 1).
//  ReservedCount – seats held by HOLD, PAID, CANCEL_REQUESTED and
//                  COMPLETED reservations.
//  StartAt       – when the class begins; bookings close at this instant.
//  Price         – price of one seat in minor currency units.
type Session struct {
	ID            uint64    // class_sessions.id
	Title         string    // class_sessions.title
	Capacity      int       // class_sessions.capacity
	ReservedCount int       // class_sessions.reserved_count
	StartAt       time.Time // class_sessions.start_at
	Price         int64     // class_sessions.price
	CreatedAt     time.Time // class_sessions.created_at
	UpdatedAt     time.Time // class_sessions.updated_at
}

// RemainingSeats returns how many seats can still be reserved.
func (s *Session) RemainingSeats() int {
	return s.Capacity - s.ReservedCount
}

// HasStarted reports whether the class start is at or before now.
func (s *Session) HasStarted(now time.Time) bool {
	return !s.StartAt.After(now)
}

// Validate checks the capacity invariant.
func (s *Session) Validate() error {
	if s.Capacity < 1 {
		return NewValidationError("capacity", "must be at least 1")
	}
	if s.ReservedCount < 0 || s.ReservedCount > s.Capacity {
		return NewValidationError("reserved_count", "must be between 0 and capacity")
	}
	return nil
}

// Availability is the read-only projection of a session's seat counts.
type Availability struct {
	SessionID      uint64    `json:"session_id"`
	Title          string    `json:"title"`
	Capacity       int       `json:"capacity"`
	ReservedCount  int       `json:"reserved_count"`
	RemainingSeats int       `json:"remaining_seats"`
	StartAt        time.Time `json:"start_at"`
	Price          int64     `json:"price"`
	Open           bool      `json:"open"`
}

// AvailabilityAt projects s as seen at now. A session is open while it has
// free seats and has not started.
func (s *Session) AvailabilityAt(now time.Time) Availability {
	return Availability{
		SessionID:      s.ID,
		Title:          s.Title,
		Capacity:       s.Capacity,
		ReservedCount:  s.ReservedCount,
		RemainingSeats: s.RemainingSeats(),
		StartAt:        s.StartAt,
		Price:          s.Price,
		Open:           s.RemainingSeats() > 0 && !s.HasStarted(now),
	}
}
