package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifycore/pkg/retry"
)

var allKinds = []retry.Kind{
	retry.KindUnknown,
	retry.KindNetworkTimeout,
	retry.KindNetworkUnavailable,
	retry.KindServiceUnavailable,
	retry.KindRateLimited,
	retry.KindServerError,
	retry.KindInvalidToken,
	retry.KindPermissionDenied,
	retry.KindInvalidPayload,
	retry.KindQuotaExceeded,
	retry.KindClientError,
}

func TestPolicy_NonRetryable(t *testing.T) {
	t.Parallel()

	for _, k := range []retry.Kind{retry.KindInvalidToken, retry.KindPermissionDenied, retry.KindInvalidPayload, retry.KindClientError} {
		t.Run(k.String(), func(t *testing.T) {
			t.Parallel()
			assert.False(t, k.Retryable())
			delay, ok := retry.Next(k, 1, 10)
			assert.False(t, ok)
			assert.Zero(t, delay)
		})
	}
}

func TestPolicy_DelayMonotonicAndCapped(t *testing.T) {
	t.Parallel()

	for _, k := range allKinds {
		p := retry.PolicyFor(k)
		if !p.Retryable {
			continue
		}
		t.Run(k.String(), func(t *testing.T) {
			t.Parallel()

			// Worst case: maximum jitter on the earlier attempt, none on the later one.
			for attempt := 1; attempt < 20; attempt++ {
				cur := p.DelayWithJitter(attempt, retry.MaxJitter)
				next := p.DelayWithJitter(attempt+1, 0)
				assert.LessOrEqual(t, cur, next, "attempt %d", attempt)
				assert.LessOrEqual(t, cur, p.MaxDelay)
				assert.LessOrEqual(t, p.Delay(attempt), p.MaxDelay)
			}
		})
	}
}

func TestPolicy_DelayValues(t *testing.T) {
	t.Parallel()

	p := retry.PolicyFor(retry.KindNetworkTimeout)
	assert.Equal(t, 30*time.Second, p.DelayWithJitter(1, 0))
	assert.Equal(t, time.Minute, p.DelayWithJitter(2, 0))
	assert.Equal(t, 33*time.Second, p.DelayWithJitter(1, retry.MaxJitter))
	assert.Equal(t, 30*time.Minute, p.DelayWithJitter(12, 0))

	q := retry.PolicyFor(retry.KindQuotaExceeded)
	assert.Equal(t, time.Hour, q.DelayWithJitter(1, retry.MaxJitter), "no jitter configured")

	assert.Zero(t, p.Delay(0))
}

func TestNext_AttemptBudget(t *testing.T) {
	t.Parallel()

	_, ok := retry.Next(retry.KindServerError, 3, 0)
	assert.True(t, ok)
	_, ok = retry.Next(retry.KindServerError, 4, 0)
	assert.False(t, ok, "policy allows 4 attempts")

	_, ok = retry.Next(retry.KindNetworkUnavailable, 2, 2)
	assert.False(t, ok, "item limit is lower than the policy")
}

func TestFromHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := map[int]retry.Kind{
		400: retry.KindInvalidPayload,
		401: retry.KindInvalidToken,
		403: retry.KindPermissionDenied,
		404: retry.KindClientError,
		408: retry.KindNetworkTimeout,
		422: retry.KindInvalidPayload,
		429: retry.KindRateLimited,
		500: retry.KindServerError,
		503: retry.KindServiceUnavailable,
	}
	for code, want := range tests {
		assert.Equal(t, want, retry.FromHTTPStatus(code), code)
	}
}
