package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"terra_viajes/internal/domain"
)

// StatusService serves booking snapshots for the public status lookup.
type StatusService struct {
	repo    domain.BookingRepository
	cache   domain.Cache
	tripTTL time.Duration
}

func NewStatusService(r domain.BookingRepository, c domain.Cache, tripTTL time.Duration) *StatusService {
	return &StatusService{repo: r, cache: c, tripTTL: tripTTL}
}

// Lookup resolves a booking by token and/or order id. The token wins
// when both are present. No identifiers at all is an invalid link and
// fails before touching storage.
func (s *StatusService) Lookup(ctx context.Context, token, orderID string) (domain.Booking, error) {
	var (
		b   domain.Booking
		err error
	)
	switch {
	case token != "":
		b, err = s.repo.GetByToken(ctx, token)
	case orderID != "":
		id, perr := strconv.ParseInt(orderID, 10, 64)
		if perr != nil {
			return domain.Booking{}, domain.ErrNotFound
		}
		b, err = s.repo.GetByOrderID(ctx, id)
	default:
		return domain.Booking{}, domain.ErrInvalidLink
	}
	if err != nil {
		return domain.Booking{}, err
	}

	if trip, terr := s.trip(ctx, b.TripID); terr == nil {
		b.Trip = &trip
	}
	return b, nil
}

func (s *StatusService) ListBookings(ctx context.Context, limit int) ([]domain.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, limit)
}

// trip reads the trip summary cache-aside; bookings are never cached so
// payment/expiry flags always come straight from storage.
func (s *StatusService) trip(ctx context.Context, id int64) (domain.TripSummary, error) {
	if id <= 0 {
		return domain.TripSummary{}, domain.ErrNotFound
	}
	key := tripKey(id)
	var t domain.TripSummary
	if ok, _ := s.cache.Get(ctx, key, &t); ok {
		return t, nil
	}
	t, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		return domain.TripSummary{}, err
	}
	_ = s.cache.Set(ctx, key, t, int(s.tripTTL.Seconds()))
	return t, nil
}

func tripKey(id int64) string { return fmt.Sprintf("trip:%d", id) }
