package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/logger"
)

// Start launches the background drain and cleanup loop.
func (q *Queue) Start(ctx context.Context) error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.cancel != nil {
		return ErrAlreadyRunning
	}

	q.stopMu.Lock()
	q.stopping.Store(false)
	q.stopMu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.loop(loopCtx, q.done)

	q.logger.LogAttrs(ctx, slog.LevelInfo, "queue started",
		logger.Component("queue"),
		slog.Duration("poll_interval", q.cfg.PollInterval),
		slog.Int("max_concurrent", q.cfg.MaxConcurrent),
	)

	return nil
}

// Stop halts the loop, waits for in-flight work and flushes the in-memory
// tier to the durable store. Calling Stop on a stopped queue is a no-op.
func (q *Queue) Stop() error {
	q.runMu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel = nil
	q.runMu.Unlock()

	q.stopMu.Lock()
	q.stopping.Store(true)
	q.stopMu.Unlock()

	ctx, stop := context.WithTimeout(context.Background(), q.cfg.ShutdownTimeout)
	defer stop()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	idle := make(chan struct{})
	go func() {
		q.busy.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		q.logger.LogAttrs(ctx, slog.LevelWarn, "queue stop timed out waiting for in-flight work",
			logger.Component("queue"),
		)
	}

	err := q.Flush(ctx)
	q.logger.LogAttrs(ctx, slog.LevelInfo, "queue stopped",
		logger.Component("queue"),
		logger.Error(err),
	)

	return err
}

// Run starts the queue and returns a function suitable for errgroup.
func (q *Queue) Run(ctx context.Context) func() error {
	return func() error {
		if err := q.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return q.Stop()
	}
}

func (q *Queue) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.NewTicker(q.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(q.cfg.CleanupInterval)
	defer cleanup.Stop()

	// Attempts outlive the loop so shutdown lets them finish.
	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			n, err := q.ProcessPending(work)
			if err != nil {
				continue
			}
			if n > 0 {
				q.logger.LogAttrs(ctx, slog.LevelDebug, "drain pass delivered notifications",
					logger.Component("queue"),
					logger.Count(n),
				)
			}
		case <-cleanup.C:
			if _, err := q.Cleanup(work, q.cfg.Retention); err != nil {
				q.logger.LogAttrs(ctx, slog.LevelError, "queue cleanup failed",
					logger.Component("queue"),
					logger.Error(err),
				)
			}
		}
	}
}
