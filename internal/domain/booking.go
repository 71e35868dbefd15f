package domain

import "time"

// Status is derived from the three completion flags, never stored.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusExpired        Status = "expired"
	StatusWaitingPayment Status = "waiting_payment"
	StatusReady          Status = "ready"
)

type Booking struct {
	ID               int64        `json:"id"`
	Token            string       `json:"token"`
	TripID           int64        `json:"-"`
	CustomerName     string       `json:"customer_name"`
	CustomerEmail    string       `json:"customer_email"`
	Adults           int          `json:"adults"`
	Children         int          `json:"children"`
	TotalPrice       float64      `json:"total_price"`
	Currency         string       `json:"currency"`
	DetailsCompleted bool         `json:"details_completed"`
	IsExpired        bool         `json:"is_expired"`
	ExpiresAt        time.Time    `json:"expires_at"`
	PaymentCompleted bool         `json:"payment_completed"`
	Trip             *TripSummary `json:"trip,omitempty"`
}

// TripSummary is the subset of a trip embedded in a booking snapshot.
type TripSummary struct {
	ID            int64      `json:"-"`
	Title         string     `json:"title"`
	PriceDisplay  string     `json:"price_display"`
	Price         float64    `json:"price"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	Duration      string     `json:"duration"`
}

// DerivedStatus evaluates the completion flags in fixed precedence:
// completed > expired > awaiting payment > ready.
func (b Booking) DerivedStatus() Status {
	switch {
	case b.DetailsCompleted:
		return StatusCompleted
	case b.IsExpired:
		return StatusExpired
	case !b.PaymentCompleted:
		return StatusWaitingPayment
	default:
		return StatusReady
	}
}

// Seats is the fixed passenger cardinality of the booking.
func (b Booking) Seats() int { return b.Adults + b.Children }
