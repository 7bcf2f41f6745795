// Package ratelimit throttles notifications per user and notification type.
//
// Every check counts the user's recent requests of one type across several
// sliding windows (burst, minute, hour and day). A request that would exceed
// any window is rejected with a retry-after hint and recorded as a
// violation. Users who accumulate too many violations within the violation
// window are blocked for BlockDuration regardless of type.
//
//	store := ratelimit.NewMemoryStore()
//	defer store.Close()
//	lim := ratelimit.New(store, ratelimit.WithConfig(cfg))
//
//	d := lim.Check(ctx, userID, "comment")
//	if !d.Allowed {
//		return d.Err()
//	}
//
// The limiter fails open: when the store cannot be reached the request is
// allowed and Decision.Degraded is set.
//
// RedisStore keeps the same state in sorted sets so several daemons share
// one view of every user's traffic. Check and record happen in a single Lua
// script.
package ratelimit
