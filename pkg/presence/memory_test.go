package presence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/presence"
)

var _ notify.Connectivity = (*presence.MemoryTracker)(nil)
var _ presence.Tracker = (*presence.RedisTracker)(nil)
var _ presence.Tracker = (*presence.MemoryTracker)(nil)

func TestMemoryTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := presence.NewMemoryTracker(presence.WithClock(func() time.Time { return now }))

	assert.False(t, tr.IsOnline(ctx, 1))
	st, err := tr.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, presence.Status{UserID: 1}, st)

	require.NoError(t, tr.SetOnline(ctx, 1, "sse"))
	require.NoError(t, tr.SetQueued(ctx, 1, 3))
	assert.True(t, tr.IsOnline(ctx, 1))
	assert.Equal(t, []int64{1}, tr.Online())

	st, err = tr.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, presence.Status{UserID: 1, Online: true, LastSeen: now, Channel: "sse", QueuedCount: 3}, st)

	now = now.Add(time.Minute)
	require.NoError(t, tr.SetOffline(ctx, 1))
	st, err = tr.Status(ctx, 1)
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.Equal(t, now, st.LastSeen)
	assert.Equal(t, "sse", st.Channel)
}

func TestMemoryTracker_TTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := presence.NewMemoryTracker(
		presence.WithClock(func() time.Time { return now }),
		presence.WithTTL(2*time.Minute),
	)

	require.NoError(t, tr.SetOnline(ctx, 1, "sse"))
	require.NoError(t, tr.SetOnline(ctx, 2, "sse"))

	for range 3 {
		now = now.Add(time.Minute)
		require.NoError(t, tr.Touch(ctx, 1))
	}
	assert.True(t, tr.IsOnline(ctx, 1), "touched user stays online")
	assert.False(t, tr.IsOnline(ctx, 2), "idle user lapses after the ttl")
	assert.Equal(t, []int64{1}, tr.Online())

	st, err := tr.Status(ctx, 2)
	require.NoError(t, err)
	assert.False(t, st.Online)

	require.NoError(t, tr.Touch(ctx, 2))
	assert.False(t, tr.IsOnline(ctx, 2), "touch does not revive a lapsed user")
	assert.ErrorIs(t, tr.Touch(ctx, 0), presence.ErrInvalidUserID)
}

func TestMemoryTracker_InvalidUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := presence.NewMemoryTracker()
	assert.ErrorIs(t, tr.SetOnline(ctx, 0, "x"), presence.ErrInvalidUserID)
	assert.ErrorIs(t, tr.SetOffline(ctx, -1), presence.ErrInvalidUserID)
	assert.ErrorIs(t, tr.SetQueued(ctx, 0, 1), presence.ErrInvalidUserID)
	_, err := tr.Status(ctx, 0)
	assert.ErrorIs(t, err, presence.ErrInvalidUserID)
}

func TestMemoryTracker_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := presence.NewMemoryTracker()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = tr.SetOnline(ctx, id, "sse")
			_ = tr.IsOnline(ctx, id)
			_ = tr.SetQueued(ctx, id, int(id))
		}(int64(i + 1))
	}
	wg.Wait()
	assert.Len(t, tr.Online(), 50)
}
