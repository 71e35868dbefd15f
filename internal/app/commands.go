package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"terra_viajes/internal/adapters/observability"
	"terra_viajes/internal/domain"
	"terra_viajes/internal/notify"
)

// BookingCommands covers the write side: admin booking creation, the
// payment webhook, passenger completion and the expiry sweep.
type BookingCommands struct {
	repo     domain.BookingRepository
	cache    domain.Cache
	producer domain.Publisher
	topic    string
	tokenTTL time.Duration
	lockTTL  time.Duration
}

func NewBookingCommands(
	r domain.BookingRepository,
	c domain.Cache,
	p domain.Publisher,
	topic string,
	tokenTTL, lockTTL time.Duration,
) *BookingCommands {
	return &BookingCommands{repo: r, cache: c, producer: p, topic: topic, tokenTTL: tokenTTL, lockTTL: lockTTL}
}

type CreateBookingInput struct {
	TripID        int64   `json:"trip_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	Adults        int     `json:"adults"`
	Children      int     `json:"children"`
	TotalPrice    float64 `json:"total_price"`
	Currency      string  `json:"currency"`
}

func (c *BookingCommands) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return domain.Booking{}, fmt.Errorf("customer name is required")
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		return domain.Booking{}, fmt.Errorf("customer email is required")
	}
	if in.Adults < 1 {
		return domain.Booking{}, fmt.Errorf("a booking needs at least one adult")
	}
	if in.Children < 0 {
		return domain.Booking{}, fmt.Errorf("children count cannot be negative")
	}

	trip, err := c.repo.GetTrip(ctx, in.TripID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("trip %d: %w", in.TripID, err)
	}

	b := domain.Booking{
		Token:         uuid.NewString(),
		TripID:        in.TripID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Adults:        in.Adults,
		Children:      in.Children,
		TotalPrice:    in.TotalPrice,
		Currency:      in.Currency,
		ExpiresAt:     time.Now().Add(c.tokenTTL),
	}
	if b.TotalPrice == 0 {
		b.TotalPrice = trip.Price * float64(b.Seats())
	}
	if b.Currency == "" {
		b.Currency = "EUR"
	}
	if err := c.repo.Create(ctx, &b); err != nil {
		return domain.Booking{}, err
	}
	b.Trip = &trip

	observability.ObserveBooking("created")
	c.publish(ctx, notify.EventBookingCreated, b)
	return b, nil
}

// MarkPaid is the payment webhook stand-in; it flips the booking out of
// waiting_payment, which the completion poller observes on its next tick.
func (c *BookingCommands) MarkPaid(ctx context.Context, token string) (domain.Booking, error) {
	b, err := c.repo.MarkPaid(ctx, token)
	if err != nil {
		return domain.Booking{}, err
	}
	observability.ObserveBooking("paid")
	c.publish(ctx, notify.EventBookingPaid, b)
	return b, nil
}

// CompleteDetails validates and persists the full passenger batch in one
// unit. A redis lock per token refuses overlapping submissions; the batch
// is rejected whole if any record fails, and the guard clause in storage
// re-checks the status precedence atomically.
func (c *BookingCommands) CompleteDetails(ctx context.Context, token string, ps []domain.Passenger) error {
	if token == "" {
		return domain.ErrInvalidLink
	}
	b, err := c.repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	switch b.DerivedStatus() {
	case domain.StatusCompleted:
		return domain.ErrAlreadyCompleted
	case domain.StatusExpired:
		return domain.ErrExpired
	case domain.StatusWaitingPayment:
		return domain.ErrPaymentPending
	}
	if len(ps) != b.Seats() {
		return fmt.Errorf("expected %d passengers, got %d", b.Seats(), len(ps))
	}

	// roles are positional on the wire: record 0 is the lead
	for i := range ps {
		if i == 0 {
			ps[i].Role = domain.RoleLead
		} else {
			ps[i].Role = domain.RoleAdditional
		}
	}
	if _, err := domain.ValidateManifest(ps); err != nil {
		return err
	}

	ok, err := c.cache.AcquireLock(ctx, "complete:"+token, c.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSubmitInFlight
	}
	defer func() { _ = c.cache.ReleaseLock(ctx, "complete:"+token) }()

	if err := c.repo.CompleteDetails(ctx, token, ps); err != nil {
		return err
	}

	observability.ObserveBooking("completed")
	b.DetailsCompleted = true
	c.publish(ctx, notify.EventDetailsCompleted, b)
	return nil
}

func (c *BookingCommands) UpsertTrip(ctx context.Context, t *domain.TripSummary) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("trip title is required")
	}
	if err := c.repo.UpsertTrip(ctx, t); err != nil {
		return err
	}
	return c.cache.Del(ctx, tripKey(t.ID))
}

// ExpireOverdue marks unpaid bookings past their token expiry and emits
// one event per expired booking. Invoked periodically by the notifier.
func (c *BookingCommands) ExpireOverdue(ctx context.Context) ([]domain.Booking, error) {
	expired, err := c.repo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for _, b := range expired {
		observability.ObserveBooking("expired")
		c.publish(ctx, notify.EventBookingExpired, b)
	}
	return expired, nil
}

// publish is fire-and-forget: a lost notification never fails the
// booking operation itself.
func (c *BookingCommands) publish(ctx context.Context, eventType string, b domain.Booking) {
	if c.producer == nil || c.topic == "" {
		return
	}
	if err := c.producer.Publish(ctx, c.topic, b.Token, notify.NewEvent(eventType, b)); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("token", b.Token).Msg("publish booking event failed")
	}
}
