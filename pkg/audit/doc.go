// Package audit keeps an append-only log of security relevant events raised
// by the notification pipeline: blocked senders, rate limit violations and
// unsafe content.
//
// Every event carries a Severity and free-form metadata. Metadata passes
// through a MetadataFilter before it is stored so that email addresses,
// tokens and similar values never reach the audit backend in clear text.
//
// Storage is pluggable. MemoryStorage serves tests and single-process
// deployments; the postgres and opensearch packages under pkg/storage
// implement the same interface. AsyncWriter batches writes for backends
// that prefer bulk inserts.
//
// # Usage
//
//	log := audit.New(audit.NewMemoryStorage(), audit.WithLogger(slog.Default()))
//	_ = log.RateLimitViolation(ctx, userID, "minute", map[string]any{"type": "like"})
//
//	events, _ := log.Query(ctx, audit.Criteria{
//		UserID: userID,
//		Types:  []audit.EventType{audit.EventRateLimitViolation},
//		From:   time.Now().Add(-24 * time.Hour),
//	})
//
//	removed, _ := log.Cleanup(ctx, 90*24*time.Hour)
package audit
