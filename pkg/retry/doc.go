// Package retry classifies delivery failures into error kinds and maps each
// kind to a fixed retry policy.
//
// The policy table is a constant lookup keyed by Kind. Non-retryable kinds
// (invalid token, permission denied, invalid payload, client error) fail an
// item on first occurrence. Retryable kinds back off exponentially:
//
//	delay = min(initial * factor^(attempt-1) + jitter, max)
//
// where jitter is a random addition of up to 10% of the computed delay.
// The cap is applied after jitter so a delay never exceeds the kind's maximum.
//
// Transports report a kind by wrapping their error:
//
//	return retry.Wrap(retry.KindRateLimited, err)
//
// Classify recovers it, falling back to context and net error inspection.
package retry
