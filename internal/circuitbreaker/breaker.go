package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	Closed   State = iota // Normal operation, store calls pass through.
	Open                  // Backend failing, calls are rejected immediately.
	HalfOpen              // Probing recovery, the next call is let through.
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker stops hammering a document backend that keeps failing.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	maxFailures     int
	resetTimeout    time.Duration
	lastFailureTime time.Time
	onChange        func(from, to State)
}

// New creates a Breaker that opens after maxFailures consecutive errors
// and attempts recovery after resetTimeout.
func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		state:        Closed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// OnStateChange registers a callback fired (under the breaker lock) on every
// transition. Keep it cheap.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// Execute runs fn through the circuit breaker. If the circuit is open,
// ErrCircuitOpen is returned without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	return b.ExecuteContext(context.Background(), fn)
}

// ExecuteContext is Execute for a call made on behalf of ctx. A failure
// after ctx is done is the caller giving up and is not counted; deadlines
// the backend sets for itself still are.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		if time.Since(b.lastFailureTime) <= b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.setState(HalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		b.failures++
		b.lastFailureTime = time.Now()
		if b.failures >= b.maxFailures || b.state == HalfOpen {
			b.setState(Open)
		}
		return err
	}

	b.failures = 0
	b.setState(Closed)
	return err
}

// State returns the current state of the breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
