// Package httpapi exposes the notification core over HTTP.
//
// Operator endpoints report health and statistics and trigger a refresh.
// Per-user endpoints return history, undelivered records, pending queue
// items and the delivery status, and replay missed notifications. Producers
// submit notifications with POST /notifications and
// POST /notifications/multicast.
//
// GET /users/{userID}/stream is the transport of the in-process socket
// provider: it subscribes to the provider hub and writes each message as a
// Server-Sent Event. Opening a stream marks the user online and drains
// their queue; closing the last one marks them offline.
//
//	api := httpapi.New(orch, q, hub, httpapi.WithLogger(log))
//	srv := httpapi.NewServer(cfg.HTTP, log)
//	g.Go(func() error { return srv.Run(ctx, api.Handler()) })
package httpapi
