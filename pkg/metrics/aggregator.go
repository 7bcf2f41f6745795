package metrics

import (
	"sync"
	"time"
)

const DefaultCapacity = 1000

// Breakdown is the counter set of one provider or type.
type Breakdown struct {
	Total       int64         `json:"total"`
	Succeeded   int64         `json:"succeeded"`
	Failed      int64         `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`

	latencySum time.Duration
}

func (b *Breakdown) add(ev Event) {
	b.Total++
	b.latencySum += ev.Latency
	switch {
	case ev.Outcome.Successful():
		b.Succeeded++
	case ev.Outcome == OutcomeFailed || ev.Outcome == OutcomeExpired:
		b.Failed++
	}
	if attempted := b.Succeeded + b.Failed; attempted > 0 {
		b.SuccessRate = float64(b.Succeeded) / float64(attempted)
	}
	b.AvgLatency = b.latencySum / time.Duration(b.Total)
}

// Stats is a point-in-time copy of the aggregates.
type Stats struct {
	Breakdown
	ByProvider  map[string]Breakdown `json:"by_provider"`
	ByType      map[string]Breakdown `json:"by_type"`
	ByOutcome   map[Outcome]int64    `json:"by_outcome"`
	LastUpdated time.Time            `json:"last_updated,omitzero"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	ring     []Event
	next     int
	full     bool
	total    Breakdown
	provider map[string]*Breakdown
	types    map[string]*Breakdown
	outcomes map[Outcome]int64
	updated  time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCapacity sets the rolling log size.
func WithCapacity(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.ring = make([]Event, n)
		}
	}
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		ring:     make([]Event, DefaultCapacity),
		provider: make(map[string]*Breakdown),
		types:    make(map[string]*Breakdown),
		outcomes: make(map[Outcome]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends ev, evicting the oldest event when the log is full.
func (a *Aggregator) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.ring[a.next] = ev
	a.next = (a.next + 1) % len(a.ring)
	if a.next == 0 {
		a.full = true
	}

	a.total.add(ev)
	a.outcomes[ev.Outcome]++
	if ev.Provider != "" {
		bucket(a.provider, ev.Provider).add(ev)
	}
	if ev.Type != "" {
		bucket(a.types, ev.Type).add(ev)
	}
	a.updated = ev.At
}

// Recent returns up to n events, newest first. n <= 0 returns all retained.
func (a *Aggregator) Recent(n int) []Event {
	return a.collect(n, func(Event) bool { return true })
}

// ForUser returns up to n of the user's retained events, newest first.
func (a *Aggregator) ForUser(userID int64, n int) []Event {
	return a.collect(n, func(ev Event) bool { return ev.UserID == userID })
}

// Len returns the number of retained events.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.full {
		return len(a.ring)
	}
	return a.next
}

// Snapshot returns a copy of the cumulative aggregates.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Stats{
		Breakdown:   a.total,
		ByProvider:  make(map[string]Breakdown, len(a.provider)),
		ByType:      make(map[string]Breakdown, len(a.types)),
		ByOutcome:   make(map[Outcome]int64, len(a.outcomes)),
		LastUpdated: a.updated,
	}
	for k, v := range a.provider {
		s.ByProvider[k] = *v
	}
	for k, v := range a.types {
		s.ByType[k] = *v
	}
	for k, v := range a.outcomes {
		s.ByOutcome[k] = v
	}
	return s
}

func (a *Aggregator) collect(n int, keep func(Event) bool) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	size := a.next
	if a.full {
		size = len(a.ring)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Event, 0, n)
	for i := 1; i <= size && len(out) < n; i++ {
		ev := a.ring[(a.next-i+len(a.ring))%len(a.ring)]
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func bucket(m map[string]*Breakdown, key string) *Breakdown {
	b, ok := m[key]
	if !ok {
		b = &Breakdown{}
		m[key] = b
	}
	return b
}
