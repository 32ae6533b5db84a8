// Package queue defines message payloads exchanged over the message broker
// and the RabbitMQ publisher and consumer that carry them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on every reservation transition.
const (
	EventHoldCreated     = "reservation.hold_created"
	EventPaid            = "reservation.paid"
	EventCancelRequested = "reservation.cancel_requested"
	EventCanceled        = "reservation.canceled"
	EventCancelRejected  = "reservation.cancel_rejected"
	EventExpired         = "reservation.expired"
	EventCompleted       = "reservation.completed"
)

// ReservationEvent describes one committed reservation transition. It
// carries enough for downstream consumers (refunds, notifications,
// analytics) to act without querying the booking database.
type ReservationEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	SessionID     uint64 `json:"session_id"`
	UserID        uint64 `json:"user_id"`
	Status        string `json:"status"`
	PaymentRef    string `json:"payment_ref,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent stamps a fresh event id and an RFC 3339 time.
func NewReservationEvent(typ string, reservationID, sessionID, userID uint64, status string, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: reservationID,
		SessionID:     sessionID,
		UserID:        userID,
		Status:        status,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
