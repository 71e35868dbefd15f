package completion

import (
	"context"
	"fmt"
	"sync"

	"terra_viajes/internal/domain"
)

// Collector owns the passenger records for one form session. All records
// live in memory simultaneously; a single active index steps through
// them and switching focus never resets what was typed elsewhere.
type Collector struct {
	client    StoreClient
	token     string
	onSuccess func()

	mu         sync.Mutex
	passengers []domain.Passenger
	active     int
	submitting bool
}

func NewCollector(client StoreClient, b domain.Booking, onSuccess func()) *Collector {
	return &Collector{
		client:     client,
		token:      b.Token,
		onSuccess:  onSuccess,
		passengers: domain.NewManifest(b),
	}
}

func (c *Collector) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Passengers returns a copy; the collector keeps exclusive ownership of
// the backing array.
func (c *Collector) Passengers() []domain.Passenger {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Passenger, len(c.passengers))
	copy(out, c.passengers)
	return out
}

// Label computes the display name of record i from its position.
func (c *Collector) Label(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Label(c.passengers, i)
}

// UpdateActive mutates fields of the active record only.
func (c *Collector) UpdateActive(mut func(p *domain.Passenger)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mut(&c.passengers[c.active])
}

// Next validates the active record and advances the focus. A validation
// failure pins the index and reports an error scoped to that passenger.
func (c *Collector) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.passengers[c.active].Validate(); err != nil {
		return fmt.Errorf("%s: %w", domain.Label(c.passengers, c.active), err)
	}
	if c.active < len(c.passengers)-1 {
		c.active++
	}
	return nil
}

// Prev steps back without validating; partially entered data stays put.
func (c *Collector) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		c.active--
	}
}

// Submit re-validates every record and sends the whole batch in one
// request. The first invalid record aborts the call and becomes the
// active one. On store rejection or transport failure the entered data
// is retained for correction and resubmission.
func (c *Collector) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return domain.ErrSubmitInFlight
	}
	if i, err := domain.ValidateManifest(c.passengers); err != nil {
		c.active = i
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	batch := make([]domain.Passenger, len(c.passengers))
	copy(batch, c.passengers)
	token := c.token
	c.mu.Unlock()

	err := c.client.Complete(ctx, token, batch)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if c.onSuccess != nil {
		c.onSuccess()
	}
	return nil
}
