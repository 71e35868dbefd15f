package domain

import (
	"context"
	"time"
)

type BookingRepository interface {
	// Write paths
	Create(ctx context.Context, b *Booking) error
	MarkPaid(ctx context.Context, token string) (Booking, error)
	CompleteDetails(ctx context.Context, token string, ps []Passenger) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]Booking, error)
	UpsertTrip(ctx context.Context, t *TripSummary) error

	// Read paths
	GetByToken(ctx context.Context, token string) (Booking, error)
	GetByOrderID(ctx context.Context, orderID int64) (Booking, error)
	List(ctx context.Context, limit int) ([]Booking, error)
	GetTrip(ctx context.Context, id int64) (TripSummary, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error

	// AcquireLock is a SetNX-style guard used to serialize completion
	// submissions per token.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any) error
}
