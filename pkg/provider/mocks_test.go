package provider_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/provider"
)

// MockProvider is a testify mock of provider.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string    { return m.Called().String(0) }
func (m *MockProvider) Priority() int   { return m.Called().Int(0) }
func (m *MockProvider) IsEnabled() bool { return m.Called().Bool(0) }

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockProvider) Send(ctx context.Context, msg notify.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// fakeProvider is a scriptable provider for state-heavy tests.
type fakeProvider struct {
	name      string
	priority  int
	disabled  bool
	available atomic.Bool
	probes    atomic.Int32
	sends     atomic.Int32

	mu      sync.Mutex
	sendErr func(msg notify.Message) error
}

func newFake(name string, priority int) *fakeProvider {
	f := &fakeProvider{name: name, priority: priority}
	f.available.Store(true)
	return f
}

func (f *fakeProvider) failWith(fn func(notify.Message) error) {
	f.mu.Lock()
	f.sendErr = fn
	f.mu.Unlock()
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Priority() int   { return f.priority }
func (f *fakeProvider) IsEnabled() bool { return !f.disabled }

func (f *fakeProvider) IsAvailable(context.Context) bool {
	f.probes.Add(1)
	return f.available.Load()
}

func (f *fakeProvider) Send(_ context.Context, msg notify.Message) error {
	f.sends.Add(1)
	f.mu.Lock()
	fn := f.sendErr
	f.mu.Unlock()
	if fn != nil {
		return fn(msg)
	}
	return nil
}

// fakeBatcher adds native multicast to fakeProvider.
type fakeBatcher struct {
	*fakeProvider
	unreachable map[int64]bool
	batches     atomic.Int32
}

func (f *fakeBatcher) SendBatch(_ context.Context, ids []int64, _ notify.Message) (provider.BatchResult, error) {
	f.batches.Add(1)
	res := provider.BatchResult{Failed: map[int64]error{}}
	for _, id := range ids {
		if f.unreachable[id] {
			res.Failed[id] = provider.ErrRecipientUnreachable
			continue
		}
		res.Delivered = append(res.Delivered, id)
	}
	return res, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
