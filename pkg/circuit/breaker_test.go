package circuit_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifycore/pkg/circuit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBreaker() (*circuit.Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return circuit.New(circuit.WithClock(clock.Now)), clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker()
	for i := range 4 {
		b.RecordFailure()
		assert.Equal(t, circuit.Closed, b.State(), "failure %d", i+1)
		assert.True(t, b.Allow())
	}

	b.RecordFailure()
	assert.Equal(t, circuit.Open, b.State())
	assert.False(t, b.Allow())
	assert.True(t, b.IsOpen())
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	t.Parallel()

	b, _ := newBreaker()
	for range 4 {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for range 4 {
		b.RecordFailure()
	}
	assert.Equal(t, circuit.Closed, b.State())
}

func TestBreaker_CooldownAndHalfOpen(t *testing.T) {
	t.Parallel()

	t.Run("single success closes", func(t *testing.T) {
		t.Parallel()

		b, clock := newBreaker()
		for range 5 {
			b.RecordFailure()
		}

		clock.Advance(circuit.DefaultCooldown - time.Second)
		assert.False(t, b.Allow())

		clock.Advance(time.Second)
		assert.Equal(t, circuit.HalfOpen, b.State())
		assert.True(t, b.Allow())

		b.RecordSuccess()
		assert.Equal(t, circuit.Closed, b.State())
		assert.Zero(t, b.Stats().ConsecutiveFailures)
	})

	t.Run("failure reopens and restarts cooldown", func(t *testing.T) {
		t.Parallel()

		b, clock := newBreaker()
		for range 5 {
			b.RecordFailure()
		}
		clock.Advance(circuit.DefaultCooldown)
		assert.True(t, b.Allow())

		b.RecordFailure()
		assert.Equal(t, circuit.Open, b.State())

		clock.Advance(circuit.DefaultCooldown / 2)
		assert.False(t, b.Allow())

		clock.Advance(circuit.DefaultCooldown / 2)
		assert.True(t, b.Allow())
	})

	t.Run("one trial at a time", func(t *testing.T) {
		t.Parallel()

		b, clock := newBreaker()
		for range 5 {
			b.RecordFailure()
		}
		clock.Advance(circuit.DefaultCooldown)

		var (
			wg      sync.WaitGroup
			allowed atomic.Int32
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if b.Allow() {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), allowed.Load())
		assert.Equal(t, circuit.HalfOpen, b.State())

		b.Release()
		assert.True(t, b.Allow(), "released trial lets the next caller in")
		assert.False(t, b.Allow())

		clock.Advance(circuit.DefaultCooldown)
		assert.True(t, b.Allow(), "a trial that never reports is abandoned")

		b.RecordSuccess()
		assert.True(t, b.Allow())
		assert.True(t, b.Allow())
	})
}

func TestBreaker_Options(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	b := circuit.New(circuit.WithThreshold(2), circuit.WithCooldown(time.Minute), circuit.WithClock(clock.Now))
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	clock.Advance(time.Minute)
	assert.False(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, circuit.Closed, b.State())
	assert.Equal(t, "closed", b.Stats().State)
}

func TestBreaker_Concurrent(t *testing.T) {
	t.Parallel()

	b := circuit.New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.RecordFailure()
			_ = b.Allow()
		}()
		go func() {
			defer wg.Done()
			b.RecordSuccess()
			_ = b.Stats()
		}()
	}
	wg.Wait()
}
