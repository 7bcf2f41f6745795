// Package orchestrator is the single entry point of the delivery core.
//
// Send walks a fixed sequence of steps for every request: validate, check
// user preferences, rate limit and screen content, persist the in-app
// record, then deliver. Delivery tries the user's preferred channel, then a
// real-time provider when the user is online, then email, and finally hands
// the notification to the retry queue. Every terminal outcome is recorded
// in the metrics aggregator.
//
// Only the user directory, preferences, connectivity oracle and inbox
// storage are required. The provider manager, queue, enhancement service
// and email dispatcher default to no-op implementations, so a minimal
// deployment still persists notifications and reports them as undelivered.
//
// Read-side operations (GetDeliveryStatus, GetHistory, GetUndelivered,
// ReplayMissed) and operator operations (GetStats, IsHealthy,
// GetHealthReport, RefreshSystem) are exposed for the HTTP layer.
package orchestrator
