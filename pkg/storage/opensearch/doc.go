// Package opensearch stores audit events in an OpenSearch index so security
// events can be searched alongside other operational logs.
//
// AuditStore implements audit.Storage and audit.Counter. Events are written
// with the bulk API using create actions keyed by event id, so a retried
// batch never duplicates documents. Queries map audit.Criteria onto a bool
// filter sorted by created_at descending.
//
//	client, err := opensearch.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := opensearch.NewAuditStore(client, cfg.Index, opensearch.WithRefresh(cfg.Refresh))
//	if err := store.EnsureIndex(ctx); err != nil {
//		return err
//	}
//	writer := audit.NewAsyncWriter(store, audit.AsyncOptions{})
package opensearch
