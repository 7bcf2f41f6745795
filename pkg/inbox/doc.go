// Package inbox stores the in-app notification records that back a user's
// history and badge counts.
//
// A record is created once per accepted request before any delivery attempt,
// so the inbox stays authoritative even when real-time delivery never
// succeeds. Delivery paths later mark the record delivered, and undelivered
// records can be listed for replay.
//
// Storage has two implementations: MemoryStorage here for tests and single
// process setups, and the Postgres store in pkg/storage/postgres.
package inbox
