package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// MaxJitter is the largest jitter fraction added on top of a computed delay.
const MaxJitter = 0.10

// Policy is the retry strategy of one error kind.
type Policy struct {
	Retryable    bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Factor       float64
	Jitter       bool
}

// Factors stay at or above 1.5 so that the worst case jitter (+10%) of one
// attempt never exceeds the jitter-free delay of the next.
var policies = map[Kind]Policy{
	KindNetworkTimeout:     {Retryable: true, InitialDelay: 30 * time.Second, MaxDelay: 30 * time.Minute, MaxAttempts: 5, Factor: 2, Jitter: true},
	KindNetworkUnavailable: {Retryable: true, InitialDelay: time.Minute, MaxDelay: time.Hour, MaxAttempts: 6, Factor: 2, Jitter: true},
	KindServiceUnavailable: {Retryable: true, InitialDelay: 2 * time.Minute, MaxDelay: 2 * time.Hour, MaxAttempts: 5, Factor: 2, Jitter: true},
	KindRateLimited:        {Retryable: true, InitialDelay: 5 * time.Minute, MaxDelay: 4 * time.Hour, MaxAttempts: 5, Factor: 3, Jitter: true},
	KindServerError:        {Retryable: true, InitialDelay: time.Minute, MaxDelay: time.Hour, MaxAttempts: 4, Factor: 2, Jitter: true},
	KindQuotaExceeded:      {Retryable: true, InitialDelay: time.Hour, MaxDelay: 24 * time.Hour, MaxAttempts: 3, Factor: 2},
	KindUnknown:            {Retryable: true, InitialDelay: 5 * time.Minute, MaxDelay: time.Hour, MaxAttempts: 3, Factor: 2, Jitter: true},
	KindInvalidToken:       {},
	KindPermissionDenied:   {},
	KindInvalidPayload:     {},
	KindClientError:        {},
}

// PolicyFor returns the policy of k. Unregistered kinds get the unknown policy.
func PolicyFor(k Kind) Policy {
	if p, ok := policies[k]; ok {
		return p
	}
	return policies[KindUnknown]
}

// Delay returns the wait before the attempt following the given failed
// attempt number (1-based). Non-retryable kinds and non-positive attempts
// return zero.
func (p Policy) Delay(attempt int) time.Duration {
	frac := 0.0
	if p.Jitter {
		frac = rand.Float64() * MaxJitter
	}
	return p.delay(attempt, frac)
}

// DelayWithJitter is Delay with an explicit jitter fraction, clamped to
// [0, MaxJitter]. It is ignored for policies without jitter.
func (p Policy) DelayWithJitter(attempt int, frac float64) time.Duration {
	if !p.Jitter {
		frac = 0
	}
	return p.delay(attempt, min(max(frac, 0), MaxJitter))
}

func (p Policy) delay(attempt int, frac float64) time.Duration {
	if !p.Retryable || attempt <= 0 {
		return 0
	}

	interval := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt-1))
	if interval > float64(p.MaxDelay) {
		interval = float64(p.MaxDelay)
	}
	interval += interval * frac
	if interval > float64(p.MaxDelay) {
		interval = float64(p.MaxDelay)
	}

	return time.Duration(interval)
}

// Next decides what happens after the given number of failed attempts.
// limit caps the policy's own attempt budget when positive. It returns the
// delay before the next attempt and false when the item must be failed.
func Next(k Kind, attempts, limit int) (time.Duration, bool) {
	p := PolicyFor(k)
	if !p.Retryable {
		return 0, false
	}
	budget := p.MaxAttempts
	if limit > 0 && limit < budget {
		budget = limit
	}
	if attempts >= budget {
		return 0, false
	}
	return p.Delay(attempts), true
}
