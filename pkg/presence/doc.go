// Package presence tracks per-user connectivity.
//
// A Tracker records connect and disconnect events together with the last
// channel a user was seen on and the number of notifications currently
// queued for them. Both implementations satisfy notify.Connectivity so the
// orchestrator and queue can ask IsOnline without knowing where the state
// lives.
//
//	tr := presence.NewMemoryTracker()
//	tr.SetOnline(ctx, 42, "sse")
//	tr.IsOnline(ctx, 42) // true
//
// RedisTracker keeps the same state in a Redis hash per user so several
// daemons behind a load balancer agree on who is connected. Online flags
// carry a TTL and must be refreshed by the connection owner.
package presence
