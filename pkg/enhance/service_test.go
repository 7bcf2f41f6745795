package enhance_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/audit"
	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/contentfilter"
	"github.com/dmitrymomot/notifycore/pkg/enhance"
	"github.com/dmitrymomot/notifycore/pkg/logger"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/ratelimit"
)

type fixture struct {
	svc     *enhance.Service
	storage *audit.MemoryStorage
	now     time.Time
}

func newFixture(t *testing.T, cfg enhance.Config, rl ratelimit.Config) *fixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := ratelimit.NewMemoryStore(ratelimit.WithStoreClock(clock))
	t.Cleanup(func() { _ = store.Close() })

	opt, err := compress.New(compress.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = opt.Close() })

	storage := audit.NewMemoryStorage()
	svc := enhance.New(cfg,
		enhance.WithLogger(logger.Discard()),
		enhance.WithRateLimiter(ratelimit.New(store,
			ratelimit.WithConfig(rl),
			ratelimit.WithClock(clock),
			ratelimit.WithLogger(logger.Discard()),
		)),
		enhance.WithContentFilter(contentfilter.MustNew(contentfilter.DefaultRules())),
		enhance.WithAudit(audit.New(storage, audit.WithClock(clock), audit.WithLogger(logger.Discard()))),
		enhance.WithOptimizer(opt),
	)
	return &fixture{svc: svc, storage: storage, now: now}
}

func allOn() enhance.Config {
	return enhance.Config{RateLimit: true, ContentFilter: true, Audit: true, Compression: true}
}

func TestService_BurstViolationsAreAudited(t *testing.T) {
	t.Parallel()

	rl := ratelimit.DefaultConfig()
	rl.BurstLimit = 3
	f := newFixture(t, allOn(), rl)
	ctx := context.Background()

	var rejected int
	for i := range 10 {
		err := f.svc.CheckRateLimit(ctx, 9, "like")
		if i < 3 {
			require.NoError(t, err, "request %d", i+1)
			continue
		}
		require.ErrorIs(t, err, notify.ErrRateLimited, "request %d", i+1)
		var rle *notify.RateLimitError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, ratelimit.WindowBurst, rle.Window)
		rejected++
	}
	assert.Equal(t, 7, rejected)

	events, err := f.storage.Query(ctx, audit.Criteria{UserID: 9, Types: []audit.EventType{audit.EventRateLimitViolation}})
	require.NoError(t, err)
	assert.Len(t, events, 7)

	st := f.svc.Stats()
	assert.Equal(t, int64(10), st.Checked)
	assert.Equal(t, int64(7), st.RateLimited)
	assert.Zero(t, st.Blocked)
}

func TestService_AutoBlock(t *testing.T) {
	t.Parallel()

	rl := ratelimit.DefaultConfig()
	rl.BurstLimit = 1
	rl.BlockThreshold = 2
	f := newFixture(t, allOn(), rl)
	ctx := context.Background()

	require.NoError(t, f.svc.CheckRateLimit(ctx, 3, "comment"))
	require.Error(t, f.svc.CheckRateLimit(ctx, 3, "comment"))

	err := f.svc.CheckRateLimit(ctx, 3, "comment")
	var rle *notify.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.True(t, rle.Blocked)

	err = f.svc.CheckRateLimit(ctx, 3, "follow")
	require.ErrorAs(t, err, &rle)
	assert.True(t, rle.Blocked)

	count := func(typ audit.EventType) int {
		events, err := f.storage.Query(ctx, audit.Criteria{Types: []audit.EventType{typ}})
		require.NoError(t, err)
		return len(events)
	}
	assert.Equal(t, 1, count(audit.EventUserBlocked))
	assert.Equal(t, 1, count(audit.EventBlockedAttempt))
	assert.Equal(t, int64(2), f.svc.Stats().Blocked)
}

func TestService_ScreenContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allOn(), ratelimit.DefaultConfig())
	ctx := context.Background()

	t.Run("safe content is sanitized", func(t *testing.T) {
		t.Parallel()
		c, err := f.svc.ScreenContent(ctx, 1, "comment", "  Hello   <b>there</b> ", "nice   post")
		require.NoError(t, err)
		assert.True(t, c.Safe)
		assert.Equal(t, "Hello there", c.Title)
		assert.Equal(t, "nice post", c.Body)
	})

	t.Run("phishing rejected and audited", func(t *testing.T) {
		t.Parallel()
		c, err := f.svc.ScreenContent(ctx, 2, "message", "Alert", "Please verify your account now")
		require.ErrorIs(t, err, notify.ErrUnsafeContent)
		assert.False(t, c.Safe)
		assert.Contains(t, c.Categories, "phishing")

		events, err := f.storage.Query(ctx, audit.Criteria{UserID: 2, Types: []audit.EventType{audit.EventUnsafeContent}})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.SeverityCritical, events[0].Severity)
	})
}

func TestService_Toggles(t *testing.T) {
	t.Parallel()

	rl := ratelimit.DefaultConfig()
	rl.BurstLimit = 1
	f := newFixture(t, enhance.Config{}, rl)
	ctx := context.Background()

	for range 5 {
		assert.NoError(t, f.svc.CheckRateLimit(ctx, 1, "like"))
	}
	c, err := f.svc.ScreenContent(ctx, 1, "x", "t", "verify your account")
	require.NoError(t, err)
	assert.Equal(t, "verify your account", c.Body)

	p, err := f.svc.Optimize(notify.Message{ID: "1", Body: strings.Repeat("z", 2000)}, "web")
	require.NoError(t, err)
	assert.False(t, p.Compressed())

	n, err := f.svc.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	st := f.svc.Stats()
	assert.False(t, st.RateLimit || st.ContentFilter || st.Audit || st.Compression)
	assert.Nil(t, st.Payloads)
	assert.Zero(t, f.storage.Len())
}

func TestService_MissingComponentsDisableCapability(t *testing.T) {
	t.Parallel()

	svc := enhance.New(allOn())
	st := svc.Stats()
	assert.False(t, st.RateLimit)
	assert.False(t, st.Compression)
	assert.NoError(t, svc.CheckRateLimit(context.Background(), 1, "x"))
}

func TestService_Optimize(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allOn(), ratelimit.DefaultConfig())
	p, err := f.svc.Optimize(notify.Message{ID: "1", Body: strings.Repeat("z", 2000)}, "web")
	require.NoError(t, err)
	assert.True(t, p.Compressed())
	require.NotNil(t, f.svc.Stats().Payloads)
}

func TestService_GatewayCompressionToggle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		compression bool
		encoding    string
		format      string
	}{
		{name: "enabled", compression: true, encoding: compress.EncodingZstd, format: "compact"},
		{name: "disabled", compression: false, encoding: "", format: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				encoding, format string
				payload          []byte
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				encoding = r.Header.Get("Content-Encoding")
				format = r.Header.Get("X-Payload-Format")
				payload, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusAccepted)
			}))
			t.Cleanup(srv.Close)

			cfg := allOn()
			cfg.Compression = tt.compression
			f := newFixture(t, cfg, ratelimit.DefaultConfig())
			g := provider.NewGateway(provider.GatewayConfig{URL: srv.URL, Timeout: time.Second},
				provider.WithPayloadEncoder(f.svc))

			body := strings.Repeat("more of the same ", 100)
			require.NoError(t, g.Send(context.Background(), notify.Message{ID: "n1", UserID: 4, Type: "digest", Body: body}))
			assert.Equal(t, tt.encoding, encoding)
			assert.Equal(t, tt.format, format)
			if tt.compression {
				return
			}
			var got notify.Message
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, "n1", got.ID)
			assert.Equal(t, body, got.Body)
		})
	}
}

func TestNoOp(t *testing.T) {
	t.Parallel()

	e := enhance.NoOp()
	ctx := context.Background()

	assert.NoError(t, e.CheckRateLimit(ctx, 1, "x"))
	c, err := e.ScreenContent(ctx, 1, "x", "<b>t</b>", "b")
	require.NoError(t, err)
	assert.Equal(t, "<b>t</b>", c.Title)
	assert.True(t, c.Safe)

	p, err := e.Optimize(notify.Message{ID: "7"}, compress.ChannelSMS)
	require.NoError(t, err)
	assert.Contains(t, string(p.Data), `"id":"7"`)
	assert.Equal(t, enhance.Stats{}, e.Stats())
}

func TestService_AuditFailureDoesNotChangeVerdict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := enhance.New(allOn(),
		enhance.WithLogger(logger.Discard()),
		enhance.WithContentFilter(contentfilter.MustNew(contentfilter.DefaultRules())),
		enhance.WithAudit(audit.New(failingStorage{}, audit.WithLogger(logger.Discard()))),
	)

	_, err := svc.ScreenContent(ctx, 1, "x", "t", "confirm your password")
	require.ErrorIs(t, err, notify.ErrUnsafeContent)
	assert.Equal(t, int64(1), svc.Stats().AuditFailures)
}

type failingStorage struct{}

func (failingStorage) Store(context.Context, ...audit.Event) error { return errors.New("down") }
func (failingStorage) Query(context.Context, audit.Criteria) ([]audit.Event, error) {
	return nil, errors.New("down")
}
func (failingStorage) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("down")
}
