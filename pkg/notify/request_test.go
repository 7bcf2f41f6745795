package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := notify.Request{UserID: 1, Type: "like", Title: "New like", Priority: notify.PriorityNormal}

	tests := []struct {
		name    string
		mutate  func(r *notify.Request)
		wantErr bool
	}{
		{name: "valid", mutate: func(*notify.Request) {}},
		{name: "body only", mutate: func(r *notify.Request) { r.Title = ""; r.Body = "text" }},
		{name: "zero user", mutate: func(r *notify.Request) { r.UserID = 0 }, wantErr: true},
		{name: "negative user", mutate: func(r *notify.Request) { r.UserID = -4 }, wantErr: true},
		{name: "blank type", mutate: func(r *notify.Request) { r.Type = "  " }, wantErr: true},
		{name: "no content", mutate: func(r *notify.Request) { r.Title = ""; r.Body = " " }, wantErr: true},
		{name: "bad priority", mutate: func(r *notify.Request) { r.Priority = 9 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, notify.ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequest_Expiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority notify.Priority
		want     time.Duration
	}{
		{notify.PriorityLow, 6 * time.Hour},
		{notify.PriorityNormal, 24 * time.Hour},
		{notify.PriorityHigh, 72 * time.Hour},
		{notify.PriorityCritical, 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.priority.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, notify.Request{Priority: tt.priority}.Expiry())
		})
	}

	t.Run("explicit override", func(t *testing.T) {
		t.Parallel()
		r := notify.Request{Priority: notify.PriorityLow, ExpiresIn: time.Minute}
		assert.Equal(t, time.Minute, r.Expiry())
	})
}

func TestNewQueuedNotification(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("immediate", func(t *testing.T) {
		t.Parallel()
		q := notify.NewQueuedNotification(notify.Request{UserID: 7, Type: "follow", Title: "t", Priority: notify.PriorityLow}, "rec-1", now)
		assert.Equal(t, notify.StatusPending, q.Status)
		require.NotNil(t, q.ExpiresAt)
		assert.Equal(t, now.Add(6*time.Hour), *q.ExpiresAt)
		assert.True(t, q.IsDue(now))
		assert.Nil(t, q.NextRetryAt)
		assert.False(t, q.IsScheduled(now))
		assert.False(t, q.IsExpired(now.Add(6*time.Hour-time.Second)))
		assert.True(t, q.IsExpired(now.Add(6*time.Hour)))
		assert.Equal(t, "rec-1", q.Message().ID)
	})

	t.Run("scheduled", func(t *testing.T) {
		t.Parallel()
		at := now.Add(2 * time.Hour)
		q := notify.NewQueuedNotification(notify.Request{UserID: 7, Type: "digest", Body: "b", ScheduledFor: &at}, "", now)
		assert.False(t, q.IsDue(now))
		assert.True(t, q.IsScheduled(now))
		assert.True(t, q.IsDue(at))
		assert.Equal(t, q.ID.String(), q.Message().ID)
	})

	t.Run("clone does not share pointers", func(t *testing.T) {
		t.Parallel()
		at := now.Add(time.Minute)
		q := notify.NewQueuedNotification(notify.Request{UserID: 1, Type: "x", Title: "t", ScheduledFor: &at}, "", now)
		c := q.Clone()
		*c.NextRetryAt = now.Add(time.Hour)
		*c.ExpiresAt = now
		assert.Equal(t, at, *q.NextRetryAt)
		assert.NotEqual(t, now, *q.ExpiresAt)
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, notify.StatusPending.IsTerminal())
	assert.False(t, notify.StatusProcessing.IsTerminal())
	for _, s := range []notify.Status{notify.StatusDelivered, notify.StatusFailed, notify.StatusCancelled, notify.StatusExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
}

func TestRateLimitError(t *testing.T) {
	t.Parallel()

	var err error = &notify.RateLimitError{Window: "minute", RetryAfter: 30 * time.Second}
	assert.ErrorIs(t, err, notify.ErrRateLimited)

	var rl *notify.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.Contains(t, err.Error(), "minute")
}
