package provider

import (
	"sync"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/circuit"
)

// ewmaAlpha weights the newest sample in rolling success rate and latency.
const ewmaAlpha = 0.2

// Health is the live status of one provider.
type Health struct {
	Name                string        `json:"name"`
	Priority            int           `json:"priority"`
	Enabled             bool          `json:"enabled"`
	Available           bool          `json:"available"`
	Healthy             bool          `json:"healthy"`
	Circuit             string        `json:"circuit"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	SuccessRate         float64       `json:"success_rate"`
	AvgLatency          time.Duration `json:"avg_latency"`
	Attempts            int64         `json:"attempts"`
	LastSuccess         *time.Time    `json:"last_success,omitempty"`
	LastFailure         *time.Time    `json:"last_failure,omitempty"`
}

type entry struct {
	provider Provider
	breaker  *circuit.Breaker

	mu                  sync.Mutex
	available           bool
	consecutiveFailures int
	successRate         float64
	avgLatency          time.Duration
	attempts            int64
	lastSuccess         time.Time
	lastFailure         time.Time
}

func newEntry(p Provider, opts ...circuit.Option) *entry {
	return &entry{
		provider:    p,
		breaker:     circuit.New(opts...),
		available:   true,
		successRate: 1,
	}
}

func (e *entry) name() string { return e.provider.Name() }

func (e *entry) setAvailable(v bool) {
	e.mu.Lock()
	e.available = v
	e.mu.Unlock()
}

// eligible reports whether the entry may be offered as a candidate.
func (e *entry) eligible() bool {
	if !e.provider.IsEnabled() {
		return false
	}
	e.mu.Lock()
	available := e.available
	e.mu.Unlock()
	return available && !e.breaker.IsOpen()
}

// record folds one attempt into health and breaker state.
func (e *entry) record(err error, latency time.Duration, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.attempts++
	sample := 0.0
	if err == nil {
		sample = 1
	}
	e.successRate = ewmaAlpha*sample + (1-ewmaAlpha)*e.successRate
	if e.attempts == 1 {
		e.avgLatency = latency
	} else {
		e.avgLatency = time.Duration(ewmaAlpha*float64(latency) + (1-ewmaAlpha)*float64(e.avgLatency))
	}

	switch {
	case err == nil:
		e.consecutiveFailures = 0
		e.lastSuccess = at
		e.breaker.RecordSuccess()
	case recipientFault(err):
		e.lastFailure = at
		e.breaker.Release()
	default:
		e.consecutiveFailures++
		e.lastFailure = at
		e.breaker.RecordFailure()
	}
}

func (e *entry) health() Health {
	enabled := e.provider.IsEnabled()
	stats := e.breaker.Stats()

	e.mu.Lock()
	defer e.mu.Unlock()

	h := Health{
		Name:                e.provider.Name(),
		Priority:            e.provider.Priority(),
		Enabled:             enabled,
		Available:           e.available,
		Healthy:             enabled && e.available && stats.State != circuit.Open.String(),
		Circuit:             stats.State,
		ConsecutiveFailures: e.consecutiveFailures,
		SuccessRate:         e.successRate,
		AvgLatency:          e.avgLatency,
		Attempts:            e.attempts,
	}
	if !e.lastSuccess.IsZero() {
		t := e.lastSuccess
		h.LastSuccess = &t
	}
	if !e.lastFailure.IsZero() {
		t := e.lastFailure
		h.LastFailure = &t
	}
	return h
}
