package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/logger"
)

// AsyncOptions tunes batching.
type AsyncOptions struct {
	BufferSize     int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1000"`
	BatchSize      int           `env:"AUDIT_BATCH_SIZE" envDefault:"100"`
	BatchTimeout   time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"500ms"`
	StorageTimeout time.Duration `env:"AUDIT_STORAGE_TIMEOUT" envDefault:"5s"`
}

// AsyncWriter buffers events and stores them in batches from a single
// background goroutine. Store returns once the event is buffered; when the
// buffer is full it writes through synchronously so nothing is dropped.
// Query and DeleteBefore go straight to the wrapped storage.
type AsyncWriter struct {
	storage Storage
	opts    AsyncOptions
	logger  *slog.Logger

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
}

// AsyncOption configures an AsyncWriter.
type AsyncOption func(*AsyncWriter)

// WithAsyncLogger sets the logger used to report failed batches.
func WithAsyncLogger(l *slog.Logger) AsyncOption {
	return func(w *AsyncWriter) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewAsyncWriter starts the batching goroutine. Call Close to flush.
func NewAsyncWriter(storage Storage, opts AsyncOptions, options ...AsyncOption) *AsyncWriter {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 500 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	w := &AsyncWriter{
		storage: storage,
		opts:    opts,
		logger:  slog.Default(),
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
	}
	for _, o := range options {
		o(w)
	}

	w.wg.Add(1)
	go w.worker()
	return w
}

func (w *AsyncWriter) Store(ctx context.Context, events ...Event) error {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}

	for i, e := range events {
		select {
		case w.events <- e:
		default:
			// Buffer full: write the rest through.
			return w.storage.Store(ctx, events[i:]...)
		}
	}
	return nil
}

func (w *AsyncWriter) Query(ctx context.Context, c Criteria) ([]Event, error) {
	return w.storage.Query(ctx, c)
}

func (w *AsyncWriter) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return w.storage.DeleteBefore(ctx, cutoff)
}

// Close stops accepting events and flushes the buffer. The context bounds
// how long Close waits for the final flush.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		w.closeMu.Unlock()
		close(w.done)
	})

	flushed := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	batch := make([]Event, 0, w.opts.BatchSize)
	ticker := time.NewTicker(w.opts.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.StorageTimeout)
		defer cancel()
		if err := w.storage.Store(ctx, batch...); err != nil {
			w.logger.LogAttrs(ctx, slog.LevelError, "failed to store audit batch",
				logger.Component("audit"),
				logger.Count(len(batch)),
				logger.Error(err),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.events:
			batch = append(batch, e)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case e := <-w.events:
					batch = append(batch, e)
					if len(batch) >= w.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
