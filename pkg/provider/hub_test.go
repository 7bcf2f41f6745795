package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/provider"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

func TestHub_SendToSubscribers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := provider.NewHub(provider.WithBufferSize(2))
	t.Cleanup(func() { _ = h.Close() })

	a, err := h.Subscribe(ctx, 1)
	require.NoError(t, err)
	b, err := h.Subscribe(ctx, 1)
	require.NoError(t, err)

	assert.True(t, h.IsOnline(ctx, 1))
	assert.Equal(t, 2, h.Connections(1))

	require.NoError(t, h.Send(ctx, msgFor(1)))
	assert.Equal(t, int64(1), (<-a.Messages()).UserID)
	assert.Equal(t, int64(1), (<-b.Messages()).UserID)
}

func TestHub_Unreachable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := provider.NewHub()

	err := h.Send(ctx, msgFor(7))
	assert.ErrorIs(t, err, provider.ErrRecipientUnreachable)
	assert.Equal(t, retry.KindNetworkUnavailable, retry.Classify(err))
}

func TestHub_Backlog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := provider.NewHub(provider.WithBufferSize(1))
	_, err := h.Subscribe(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, h.Send(ctx, msgFor(1)))
	err = h.Send(ctx, msgFor(1))
	assert.ErrorIs(t, err, provider.ErrSubscriberBacklog)
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()

	h := provider.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.Subscribe(ctx, 3)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return !h.IsOnline(context.Background(), 3) }, time.Second, 5*time.Millisecond)

	_, open := <-sub.Messages()
	assert.False(t, open)
	sub.Close()
}

func TestHub_SendBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := provider.NewHub()
	s1, _ := h.Subscribe(ctx, 1)
	_, _ = h.Subscribe(ctx, 2)

	msg := msgFor(0)
	msg.RecipientIDs = map[int64]string{1: "rec-1"}
	res, err := h.SendBatch(ctx, []int64{1, 2, 3}, msg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, res.Delivered)
	assert.Contains(t, res.Failed, int64(3))
	got := <-s1.Messages()
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, "rec-1", got.ID)
	assert.Nil(t, got.RecipientIDs)
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := provider.NewHub()
	sub, _ := h.Subscribe(ctx, 1)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.False(t, h.IsAvailable(ctx))

	_, open := <-sub.Messages()
	assert.False(t, open)

	_, err := h.Subscribe(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrHubClosed)
	assert.ErrorIs(t, h.Send(ctx, msgFor(1)), provider.ErrHubClosed)
}
