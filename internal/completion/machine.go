package completion

import (
	"context"
	"sync"
	"time"

	"terra_viajes/internal/domain"
)

type State string

const (
	StateLoading        State = "loading"
	StateError          State = "error"
	StateWaitingPayment State = "waiting_payment"
	StateForm           State = "form"
	StateSuccess        State = "success"
	StateExpired        State = "expired"
	StateCompleted      State = "completed"
)

// allowedTransitions is the full edge set of the session. Error, expired,
// completed and success are terminal; waiting_payment may re-enter itself
// on each poll tick.
var allowedTransitions = map[State][]State{
	StateLoading:        {StateError, StateWaitingPayment, StateForm, StateExpired, StateCompleted},
	StateWaitingPayment: {StateWaitingPayment, StateForm, StateExpired, StateCompleted, StateError},
	StateForm:           {StateSuccess},
	StateError:          {},
	StateExpired:        {},
	StateCompleted:      {},
	StateSuccess:        {},
}

func canTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const defaultPollInterval = 5 * time.Second

// Machine drives one completion session from loading to a terminal
// state. While waiting for payment it owns an explicit polling task that
// re-resolves the link on a fixed interval until the derived status
// changes or Stop is called.
type Machine struct {
	resolver *Resolver
	link     Link

	interval    time.Duration
	maxAttempts int // 0 = poll indefinitely
	backoff     float64

	mu        sync.Mutex
	state     State
	booking   domain.Booking
	err       error
	collector *Collector
	onChange  func(State)

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Machine)

// WithInterval overrides the 5s poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxAttempts caps the number of poll ticks; past the cap the
// session fails instead of waiting forever.
func WithMaxAttempts(n int) Option {
	return func(m *Machine) { m.maxAttempts = n }
}

// WithBackoff multiplies the wait by f after every tick (f > 1).
func WithBackoff(f float64) Option {
	return func(m *Machine) {
		if f > 1 {
			m.backoff = f
		}
	}
}

// WithOnChange registers a callback fired after every state change.
func WithOnChange(fn func(State)) Option {
	return func(m *Machine) { m.onChange = fn }
}

func NewMachine(r *Resolver, link Link, opts ...Option) *Machine {
	m := &Machine{
		resolver: r,
		link:     link,
		interval: defaultPollInterval,
		state:    StateLoading,
		done:     make(chan struct{}),
	}
	close(m.done) // no poll task yet
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start performs the initial resolution and, when the booking is still
// awaiting payment, launches the polling task. It returns the state the
// machine landed in.
func (m *Machine) Start(ctx context.Context) State {
	b, err := m.resolver.Resolve(ctx, m.link)
	if err != nil {
		m.fail(err)
		return m.State()
	}
	if m.apply(b) == StateWaitingPayment {
		pollCtx, cancel := context.WithCancel(ctx)
		m.mu.Lock()
		m.cancel = cancel
		m.done = make(chan struct{})
		m.mu.Unlock()
		go m.poll(pollCtx)
	}
	return m.State()
}

// Stop cancels the polling task and waits for it to exit. After Stop no
// further transitions fire. Safe to call more than once.
func (m *Machine) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err reports why the machine is in the error state, nil otherwise.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Machine) Booking() domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.booking
}

// Collector returns the passenger form, non-nil once the machine has
// reached the form state. The same collector survives for the whole
// session; entered data is never discarded.
func (m *Machine) Collector() *Collector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collector
}

// poll re-resolves the link on the configured cadence. Each tick is a
// full re-derivation; the next tick is scheduled only after the current
// resolution returns, so calls never overlap inside the task.
func (m *Machine) poll(ctx context.Context) {
	defer close(m.done)

	wait := m.interval
	attempts := 0
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		b, err := m.resolver.Resolve(ctx, m.link)
		if ctx.Err() != nil {
			return
		}
		attempts++

		if err == nil {
			if st := m.apply(b); st != StateWaitingPayment {
				return
			}
		}
		// a failed tick is transient for read-only status polling; the
		// attempt still counts toward the cap

		if m.maxAttempts > 0 && attempts >= m.maxAttempts {
			if err == nil {
				err = domain.ErrPaymentPending
			}
			m.fail(err)
			return
		}
		if m.backoff > 1 {
			wait = time.Duration(float64(wait) * m.backoff)
		}
		timer.Reset(wait)
	}
}

// apply maps a fresh booking snapshot onto the machine. Last write wins;
// transitions not in the table (e.g. a stale result landing after a
// terminal state) are dropped.
func (m *Machine) apply(b domain.Booking) State {
	var to State
	switch b.DerivedStatus() {
	case domain.StatusCompleted:
		to = StateCompleted
	case domain.StatusExpired:
		to = StateExpired
	case domain.StatusWaitingPayment:
		to = StateWaitingPayment
	default:
		to = StateForm
	}

	m.mu.Lock()
	if !canTransition(m.state, to) {
		st := m.state
		m.mu.Unlock()
		return st
	}
	changed := m.state != to
	m.state = to
	m.booking = b
	if to == StateForm && m.collector == nil {
		m.collector = NewCollector(m.resolver.client, b, m.formSubmitted)
	}
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(to)
	}
	return to
}

func (m *Machine) fail(err error) {
	m.mu.Lock()
	if !canTransition(m.state, StateError) {
		m.mu.Unlock()
		return
	}
	m.state = StateError
	m.err = err
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(StateError)
	}
}

// formSubmitted is the collector's success hook.
func (m *Machine) formSubmitted() {
	m.mu.Lock()
	if !canTransition(m.state, StateSuccess) {
		m.mu.Unlock()
		return
	}
	m.state = StateSuccess
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(StateSuccess)
	}
}
