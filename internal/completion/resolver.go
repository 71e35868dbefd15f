package completion

import (
	"context"

	"terra_viajes/internal/domain"
)

// StoreClient is the narrow contract the completion flow consumes from
// the booking store.
type StoreClient interface {
	Status(ctx context.Context, token, orderID string) (domain.Booking, error)
	Complete(ctx context.Context, token string, ps []domain.Passenger) error
}

// Link carries the identifiers extracted from an inbound completion URL.
// At least one of the two must be present.
type Link struct {
	Token   string
	OrderID string
}

func (l Link) Empty() bool { return l.Token == "" && l.OrderID == "" }

// Resolver turns a link into the booking's current snapshot. Resolution
// is a pure read and safe to repeat; the poller re-invokes it as-is.
type Resolver struct {
	client StoreClient
}

func NewResolver(c StoreClient) *Resolver { return &Resolver{client: c} }

// Resolve fails synchronously on an empty link, before any network call.
func (r *Resolver) Resolve(ctx context.Context, link Link) (domain.Booking, error) {
	if link.Empty() {
		return domain.Booking{}, domain.ErrInvalidLink
	}
	return r.client.Status(ctx, link.Token, link.OrderID)
}
