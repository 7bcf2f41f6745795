// Package queue holds notifications that could not be delivered right away
// and retries them until they are delivered, fail permanently or expire.
//
// Items expected to be retried within HotHorizon stay in memory so the hot
// retry path does no I/O. Everything else, and any overflow beyond
// HotCapacity, is written to a durable Store. On Stop the in-memory tier is
// flushed to the Store so a clean restart loses nothing.
//
// Two things trigger delivery attempts:
//
//   - ProcessPending pulls a bounded batch of due items across all users,
//     ordered by priority then creation time. Users who are offline are
//     deferred by OfflineRecheck without consuming an attempt.
//   - MarkUserOnline drains one user's pending items in creation order as
//     soon as they connect. Concurrent calls for the same user share a
//     single drain pass.
//
// Failures are classified with retry.Classify and rescheduled according to
// the retry package's policy table. Non-retryable kinds fail on the first
// occurrence.
//
// Usage:
//
//	q, err := queue.New(store, manager,
//		queue.WithTracker(tracker),
//		queue.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	g.Go(q.Run(ctx))
//
// Delivery semantics are at-least-once. An item that is being attempted
// cannot be cancelled.
package queue
