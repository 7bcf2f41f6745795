package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultThreshold = 5
	DefaultCooldown  = 5 * time.Minute
)

// Breaker is safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state       State
	failures    int
	lastFailure time.Time
	// probing is set while the single half-open trial is in flight.
	probing    bool
	probeStart time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets the consecutive failure count that opens the breaker.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open after the last failure.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a closed breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		state:     Closed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether an attempt may proceed. It performs the
// Open to HalfOpen transition once the cooldown has elapsed. A half-open
// breaker admits one trial at a time; the trial ends with RecordSuccess,
// RecordFailure or Release. A trial that never reports is abandoned after
// another cooldown.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.probing && b.now().Sub(b.probeStart) < b.cooldown {
			return false
		}
		b.startProbe()
		return true
	case Open:
		if b.cooledDown() {
			b.state = HalfOpen
			b.startProbe()
			return true
		}
		return false
	default:
		return false
	}
}

// Release ends a half-open trial without a verdict, letting the next caller
// try again. It is a no-op in other states.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) startProbe() {
	b.probing = true
	b.probeStart = b.now()
}

// RecordSuccess resets the failure count and closes a half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state == HalfOpen {
		b.state = Closed
	}
}

// RecordFailure counts a failure and opens the breaker when needed.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	b.failures++
	b.probing = false

	switch b.state {
	case Closed:
		if b.failures >= b.threshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
	}
}

// State returns the position Allow would observe, without transitioning.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.cooledDown() {
		return HalfOpen
	}
	return b.state
}

// IsOpen reports whether attempts are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.State() == Open
}

// Reset closes the breaker and forgets failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.probing = false
}

// Stats is a point-in-time view for health reports.
type Stats struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
}

// Stats returns the current counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == Open && b.cooledDown() {
		state = HalfOpen
	}
	return Stats{
		State:               state.String(),
		ConsecutiveFailures: b.failures,
		LastFailure:         b.lastFailure,
	}
}

func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.lastFailure) >= b.cooldown
}
