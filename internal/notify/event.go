package notify

import (
	"time"

	"terra_viajes/internal/domain"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingPaid      = "booking_paid"
	EventDetailsCompleted = "booking_details_completed"
	EventBookingExpired   = "booking_expired"
)

// BookingEvent is the payload published to the notifications topic on
// every booking status change.
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     int64     `json:"booking_id"`
	Token         string    `json:"token"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	TripTitle     string    `json:"trip_title,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func NewEvent(typ string, b domain.Booking) BookingEvent {
	e := BookingEvent{
		Type:          typ,
		BookingID:     b.ID,
		Token:         b.Token,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		ExpiresAt:     b.ExpiresAt,
	}
	if b.Trip != nil {
		e.TripTitle = b.Trip.Title
	}
	return e
}
