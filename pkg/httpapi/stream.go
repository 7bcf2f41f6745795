package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/logger"
)

// stream serves Server-Sent Events for one user. Subscribing marks the user
// online and drains their queue into the new subscription. The user is
// marked offline when their last stream closes.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	sub, err := a.streams.Subscribe(ctx, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer func() {
		sub.Close()
		if a.streams.Connections(userID) > 0 {
			return
		}
		if err := a.queue.MarkUserOffline(context.WithoutCancel(ctx), userID); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelWarn, "mark offline failed", logger.UserID(userID), logger.Error(err))
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	if err := rc.Flush(); err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", ErrStreaming, err))
		return
	}
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	go func() {
		n, err := a.queue.MarkUserOnline(ctx, userID, a.streamChannel)
		if err != nil {
			a.logger.LogAttrs(ctx, slog.LevelError, "mark online failed", logger.UserID(userID), logger.Error(err))
			return
		}
		if n > 0 {
			a.logger.LogAttrs(ctx, slog.LevelInfo, "drained queue on connect", logger.UserID(userID), logger.Count(n))
		}
	}()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if n, err := a.queue.Touch(ctx, userID, a.streamChannel); err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "presence refresh failed", logger.UserID(userID), logger.Error(err))
			} else if n > 0 {
				a.logger.LogAttrs(ctx, slog.LevelInfo, "drained queue on heartbeat", logger.UserID(userID), logger.Count(n))
			}
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				a.logger.LogAttrs(ctx, slog.LevelError, "encode event failed", logger.NotificationID(msg.ID), logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", msg.ID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
