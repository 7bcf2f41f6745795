package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
	"github.com/dmitrymomot/notifycore/pkg/presence"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

// MockEmailDispatcher implements notify.EmailDispatcher.
type MockEmailDispatcher struct {
	mock.Mock
}

func (m *MockEmailDispatcher) SendEmail(ctx context.Context, msg notify.Email) error {
	return m.Called(ctx, msg).Error(0)
}

type directory map[int64]*notify.User

func (d directory) GetUser(_ context.Context, userID int64) (*notify.User, error) {
	u, ok := d[userID]
	if !ok {
		return nil, notify.ErrUserNotFound
	}
	return u, nil
}

// preferences answers from per-type tables; unknown types are enabled,
// email is off and the method is auto.
type preferences struct {
	mu       sync.Mutex
	disabled map[string]bool
	email    map[string]bool
	method   map[string]notify.DeliveryMethod
	err      error
}

func newPreferences() *preferences {
	return &preferences{
		disabled: map[string]bool{},
		email:    map[string]bool{},
		method:   map[string]notify.DeliveryMethod{},
	}
}

func (p *preferences) ShouldSend(_ context.Context, _ int64, typ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	return !p.disabled[typ], nil
}

func (p *preferences) ShouldSendEmail(_ context.Context, _ int64, typ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.email[typ], nil
}

func (p *preferences) PreferredDeliveryMethod(_ context.Context, _ int64, typ string) (notify.DeliveryMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.method[typ]; ok {
		return m, nil
	}
	return notify.DeliveryAuto, nil
}

// fakeProvider is a scriptable real-time transport.
type fakeProvider struct {
	name        string
	unavailable atomic.Bool
	failing     atomic.Bool
	sends       atomic.Int32

	mu   sync.Mutex
	sent map[int64][]notify.Message
}

var errGatewayDown = errors.New("gateway: 503 service unavailable")

func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) Priority() int                    { return 1 }
func (f *fakeProvider) IsEnabled() bool                  { return true }
func (f *fakeProvider) IsAvailable(context.Context) bool { return !f.unavailable.Load() }

func (f *fakeProvider) Send(_ context.Context, msg notify.Message) error {
	f.sends.Add(1)
	if f.failing.Load() {
		return errGatewayDown
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[int64][]notify.Message)
	}
	f.sent[msg.UserID] = append(f.sent[msg.UserID], msg)
	return nil
}

// received returns the messages delivered to userID.
func (f *fakeProvider) received(userID int64) []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent[userID]...)
}

type fixture struct {
	orch     *orchestrator.Orchestrator
	queue    *queue.Queue
	store    *queue.MemoryStore
	inbox    *inbox.MemoryStorage
	tracker  *presence.MemoryTracker
	provider *fakeProvider
	prefs    *preferences
	email    *MockEmailDispatcher
	metrics  *metrics.Aggregator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	enhancer enhance.Enhancer
	cfg      orchestrator.Config
	now      func() time.Time
}

// withTickingClock makes every orchestrator clock read a millisecond later
// than the previous one so records get distinct creation times.
func withTickingClock() fixtureOption {
	return func(c *fixtureConfig) {
		var ticks atomic.Int64
		c.now = func() time.Time {
			return time.Now().Add(time.Duration(ticks.Add(1)) * time.Millisecond)
		}
	}
}

func withEnhancer(e enhance.Enhancer) fixtureOption {
	return func(c *fixtureConfig) { c.enhancer = e }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	var fc fixtureConfig
	for _, opt := range opts {
		opt(&fc)
	}

	f := &fixture{
		store:    queue.NewMemoryStore(),
		inbox:    inbox.NewMemoryStorage(),
		tracker:  presence.NewMemoryTracker(),
		provider: &fakeProvider{name: "socket"},
		prefs:    newPreferences(),
		email:    &MockEmailDispatcher{},
		metrics:  metrics.NewAggregator(),
	}

	mgr := provider.NewManager([]provider.Provider{f.provider},
		provider.WithLogger(logger.Discard()),
		// Probe on every call so availability changes apply immediately.
		provider.WithConfig(provider.Config{RefreshInterval: time.Nanosecond}),
	)

	q, err := queue.New(f.store, mgr,
		queue.WithTracker(f.tracker),
		queue.WithLogger(logger.Discard()),
		queue.WithHook(orchestrator.QueueRecorder(f.metrics, f.inbox, logger.Discard())),
	)
	require.NoError(t, err)
	f.queue = q

	users := directory{
		1: {ID: 1, Email: "ann@example.com", Username: "ann"},
		2: {ID: 2, Email: "bob@example.com", Username: "bob"},
		3: {ID: 3, Email: "cyd@example.com", Username: "cyd"},
		4: {ID: 4, Username: "noemail"},
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger.Discard()),
		orchestrator.WithDelivery(mgr),
		orchestrator.WithQueue(q),
		orchestrator.WithEmail(f.email),
		orchestrator.WithMetrics(f.metrics),
		orchestrator.WithConfig(fc.cfg),
		orchestrator.WithClock(fc.now),
	}
	if fc.enhancer != nil {
		orchOpts = append(orchOpts, orchestrator.WithEnhancer(fc.enhancer))
	}

	f.orch, err = orchestrator.New(orchestrator.Dependencies{
		Users:        users,
		Preferences:  f.prefs,
		Connectivity: f.tracker,
		Inbox:        f.inbox,
	}, orchOpts...)
	require.NoError(t, err)

	return f
}

func (f *fixture) online(t *testing.T, userID int64) {
	t.Helper()
	require.NoError(t, f.tracker.SetOnline(context.Background(), userID, "sse"))
}

// lastEvent returns the newest metrics event for the user.
func (f *fixture) lastEvent(t *testing.T, userID int64) metrics.Event {
	t.Helper()
	events := f.metrics.ForUser(userID, 1)
	require.Len(t, events, 1)
	return events[0]
}

func request(userID int64, typ string) notify.Request {
	return notify.Request{
		UserID:   userID,
		Type:     typ,
		Title:    "New comment",
		Body:     "Someone replied to your post",
		Priority: notify.PriorityNormal,
	}
}
