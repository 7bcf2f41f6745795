package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/metrics"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
)

func TestRecoverStranded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stranded record is queued and delivered", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.online(t, 1)
		created := time.Now().Add(-5 * time.Minute)
		require.NoError(t, f.inbox.Create(ctx, inbox.NewRecord("rec-1", request(1, "comment"), created)))

		// The drain loop alone never looks at the inbox.
		n, err := f.queue.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		res, err := f.orch.RecoverStranded(ctx)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.RecoveryResult{Queued: 1}, res)

		pending, err := f.queue.Pending(ctx, 1)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "rec-1", pending[0].RecordID)

		n, err = f.queue.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rec, err := f.inbox.Get(ctx, 1, "rec-1")
		require.NoError(t, err)
		assert.True(t, rec.Delivered)
		assert.Equal(t, "socket", rec.DeliveredVia)

		res, err = f.orch.RecoverStranded(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Total(), "recovered records are not picked up twice")
	})

	t.Run("young and handled records are left alone", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		require.NoError(t, f.inbox.Create(ctx, inbox.NewRecord("young", request(2, "comment"), time.Now())))

		// Send persists and queues for an offline user, which marks the
		// record dispatched.
		ok, err := f.orch.Send(ctx, request(2, "comment"))
		require.NoError(t, err)
		require.True(t, ok)

		stranded, err := f.inbox.ListStranded(ctx, time.Now().Add(time.Hour), 0)
		require.NoError(t, err)
		require.Len(t, stranded, 1)
		assert.Equal(t, "young", stranded[0].ID)

		res, err := f.orch.RecoverStranded(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Total())
	})

	t.Run("record with a pending item is linked", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		created := time.Now().Add(-5 * time.Minute)
		rec := inbox.NewRecord("rec-2", request(3, "comment"), created)
		require.NoError(t, f.inbox.Create(ctx, rec))
		require.NoError(t, f.queue.Enqueue(ctx, notify.NewQueuedNotification(rec.Request(), rec.ID, created)))

		res, err := f.orch.RecoverStranded(ctx)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.RecoveryResult{Linked: 1}, res)

		pending, err := f.queue.Pending(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("expired record is dropped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		req := request(1, "comment")
		req.Priority = notify.PriorityLow
		require.NoError(t, f.inbox.Create(ctx, inbox.NewRecord("old", req, time.Now().Add(-7*time.Hour))))

		res, err := f.orch.RecoverStranded(ctx)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.RecoveryResult{Expired: 1}, res)
		assert.Equal(t, metrics.OutcomeExpired, f.lastEvent(t, 1).Outcome)

		rec, err := f.inbox.Get(ctx, 1, "old")
		require.NoError(t, err)
		assert.True(t, rec.Dispatched)
		assert.False(t, rec.Delivered)
	})
}

func TestRun_SweepsOnStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.inbox.Create(ctx, inbox.NewRecord("rec-3", request(2, "comment"), time.Now().Add(-time.Hour))))

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx)() }()

	assert.Eventually(t, func() bool {
		pending, err := f.queue.Pending(context.Background(), 2)
		return err == nil && len(pending) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("recovery loop did not stop")
	}
}
