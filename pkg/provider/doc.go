// Package provider owns the real-time delivery transports and picks one per
// send.
//
// A Manager holds providers ordered by Priority (lower first). For each send
// it builds the candidate list: the caller's preferred provider when it is
// healthy, then every other enabled provider whose circuit breaker is not open
// and whose last liveness probe succeeded. Candidates are tried in order until
// one accepts the message. Every attempt updates that provider's health and
// breaker.
//
// Liveness probes run on demand, at most once per refresh interval, and can be
// forced with Refresh.
//
// Multicast prefers a provider implementing BatchSender. Recipients the batch
// could not reach, or all recipients when no provider batches natively, are
// fanned out as individual sends. The operation succeeds when at least one
// recipient was reached.
//
// Three transports ship with the package:
//
//   - Gateway posts signed JSON to an HTTP push gateway (mobile push relay).
//   - RedisPubSub publishes to a per-user channel consumed by socket servers.
//   - Hub fans out to in-process subscribers, such as Server-Sent Event streams.
package provider
