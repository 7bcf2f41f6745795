package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/presence"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// MockSender implements queue.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg notify.Message, preferred string) (string, error) {
	args := m.Called(ctx, msg, preferred)
	return args.String(0), args.Error(1)
}

// funcSender records calls and answers with fn.
type funcSender struct {
	mu    sync.Mutex
	calls []notify.Message
	fn    func(notify.Message) (string, error)
}

func (s *funcSender) Send(_ context.Context, msg notify.Message, _ string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, msg)
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return "socket", nil
	}
	return fn(msg)
}

func (s *funcSender) Calls() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.calls...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	q       *queue.Queue
	store   *queue.MemoryStore
	sender  *funcSender
	tracker *presence.MemoryTracker
	clock   *clock
}

func newFixture(t *testing.T, opts ...queue.Option) *fixture {
	t.Helper()
	c := newClock()
	f := &fixture{
		store:   queue.NewMemoryStore(),
		sender:  &funcSender{},
		tracker: presence.NewMemoryTracker(presence.WithClock(c.Now)),
		clock:   c,
	}
	base := []queue.Option{
		queue.WithClock(c.Now),
		queue.WithTracker(f.tracker),
		queue.WithLogger(logger.Discard()),
	}
	q, err := queue.New(f.store, f.sender, append(base, opts...)...)
	require.NoError(t, err)
	f.q = q
	return f
}

func (f *fixture) item(userID int64, p notify.Priority) *notify.QueuedNotification {
	return notify.NewQueuedNotification(notify.Request{
		UserID:   userID,
		Type:     "comment",
		Title:    "New comment",
		Priority: p,
	}, "", f.clock.Now())
}
