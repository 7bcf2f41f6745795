package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/queue"
)

var _ queue.Store = (*queue.MemoryStore)(nil)

func TestMemoryStore_Claims(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := queue.NewMemoryStore()

	mk := func(userID int64, p notify.Priority, created time.Time) *notify.QueuedNotification {
		it := notify.NewQueuedNotification(notify.Request{UserID: userID, Type: "x", Title: "t", Priority: p}, "", created)
		require.NoError(t, s.Save(ctx, it))
		return it
	}

	a := mk(1, notify.PriorityLow, now.Add(-3*time.Minute))
	b := mk(2, notify.PriorityHigh, now.Add(-2*time.Minute))
	c := mk(1, notify.PriorityHigh, now.Add(-time.Minute))
	at := now.Add(time.Hour)
	future := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t", ScheduledFor: &at}, "", now)
	require.NoError(t, s.Save(ctx, future))

	due, err := s.ClaimDue(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, b.ID, due[0].ID)
	assert.Equal(t, c.ID, due[1].ID)
	assert.Equal(t, notify.StatusProcessing, due[0].Status)

	_, err = s.CancelPending(ctx, b.ID)
	assert.ErrorIs(t, err, queue.ErrNotCancellable)

	user, err := s.ClaimUser(ctx, 1, now, 0)
	require.NoError(t, err)
	require.Len(t, user, 1)
	assert.Equal(t, a.ID, user[0].ID)

	n, err := s.CountByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, a.ID, list[0].ID)

	got, err := s.CancelPending(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, future.ID, got.ID)
	_, err = s.Get(ctx, future.ID)
	assert.ErrorIs(t, err, queue.ErrNotFound)
	_, err = s.CancelPending(ctx, uuid.New())
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestMemoryStore_Deletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := queue.NewMemoryStore()

	old := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t", Priority: notify.PriorityCritical}, "", now.Add(-48*time.Hour))
	expired := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t", Priority: notify.PriorityLow}, "", now.Add(-7*time.Hour))
	fresh := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t"}, "", now)
	for _, it := range []*notify.QueuedNotification{old, expired, fresh} {
		require.NoError(t, s.Save(ctx, it))
	}

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, fresh.ID))
	assert.Zero(t, s.Len())
	assert.ErrorIs(t, s.Save(ctx, nil), queue.ErrInvalidItem)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := queue.NewMemoryStore()
	it := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t"}, "", time.Now())
	require.NoError(t, s.Save(ctx, it))
	it.Attempts = 9

	got, err := s.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)
	got.Attempts = 5

	again, err := s.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Attempts)
}
