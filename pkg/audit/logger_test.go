package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifycore/pkg/audit"
	"github.com/dmitrymomot/notifycore/pkg/logger"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, events ...audit.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockStorage) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	args := m.Called(ctx, c)
	events, _ := args.Get(0).([]audit.Event)
	return events, args.Error(1)
}

func (m *MockStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newLogger(storage audit.Storage, now time.Time) *audit.Logger {
	return audit.New(storage,
		audit.WithLogger(logger.Discard()),
		audit.WithClock(func() time.Time { return now }),
	)
}

func TestLogger_Record(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	storage := audit.NewMemoryStorage()
	log := newLogger(storage, now)
	ctx := context.Background()

	err := log.Record(ctx, audit.Event{
		UserID:   5,
		Type:     audit.EventBlockedAttempt,
		Severity: audit.SeverityMedium,
		Metadata: map[string]any{"email": "user@example.com", "token": "abc", "type": "like"},
	})
	require.NoError(t, err)

	events, err := log.Query(ctx, audit.Criteria{UserID: 5})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.CreatedAt)
	assert.NotContains(t, e.Metadata, "token")
	assert.NotEqual(t, "user@example.com", e.Metadata["email"])
	assert.Equal(t, "like", e.Metadata["type"])
}

func TestLogger_RecordInvalid(t *testing.T) {
	t.Parallel()

	log := newLogger(audit.NewMemoryStorage(), time.Now())
	err := log.Record(context.Background(), audit.Event{UserID: 1})
	assert.ErrorIs(t, err, audit.ErrInvalidEvent)
}

func TestLogger_Helpers(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	storage := audit.NewMemoryStorage()
	log := newLogger(storage, now)
	ctx := context.Background()

	require.NoError(t, log.BlockedAttempt(ctx, 1, "like", time.Minute))
	require.NoError(t, log.RateLimitViolation(ctx, 1, "burst", 1, map[string]any{"type": "like"}))
	require.NoError(t, log.RateLimitViolation(ctx, 1, "burst", 2, nil))
	require.NoError(t, log.UserBlocked(ctx, 1, time.Hour, 10))
	require.NoError(t, log.UnsafeContent(ctx, 2, []string{"spam"}, nil))
	require.NoError(t, log.UnsafeContent(ctx, 2, []string{"spam", "phishing"}, nil))

	tests := []struct {
		name     string
		criteria audit.Criteria
		want     int
	}{
		{name: "all", criteria: audit.Criteria{}, want: 6},
		{name: "by user", criteria: audit.Criteria{UserID: 2}, want: 2},
		{name: "by type", criteria: audit.Criteria{Types: []audit.EventType{audit.EventRateLimitViolation}}, want: 2},
		{name: "min severity high", criteria: audit.Criteria{MinSeverity: audit.SeverityHigh}, want: 3},
		{name: "critical", criteria: audit.Criteria{MinSeverity: audit.SeverityCritical}, want: 1},
		{name: "future window", criteria: audit.Criteria{From: now.Add(time.Second)}, want: 0},
		{name: "limit", criteria: audit.Criteria{Limit: 4}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			events, err := log.Query(ctx, tt.criteria)
			require.NoError(t, err)
			assert.Len(t, events, tt.want)
		})
	}

	t.Run("violation severity escalates", func(t *testing.T) {
		t.Parallel()
		events, err := log.Query(ctx, audit.Criteria{Types: []audit.EventType{audit.EventRateLimitViolation}})
		require.NoError(t, err)
		severities := []audit.Severity{events[0].Severity, events[1].Severity}
		assert.ElementsMatch(t, []audit.Severity{audit.SeverityLow, audit.SeverityMedium}, severities)
	})
}

func TestLogger_Count(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := &MockStorage{}
	storage.On("Query", ctx, audit.Criteria{UserID: 3}).
		Return([]audit.Event{{ID: "a"}, {ID: "b"}}, nil).Once()

	log := newLogger(storage, time.Now())
	n, err := log.Count(ctx, audit.Criteria{UserID: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	storage.AssertExpectations(t)
}

func TestLogger_Cleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("deletes older than retention", func(t *testing.T) {
		t.Parallel()
		storage := audit.NewMemoryStorage()
		require.NoError(t, storage.Store(ctx,
			audit.Event{ID: "old", Type: audit.EventBlockedAttempt, CreatedAt: now.Add(-48 * time.Hour)},
			audit.Event{ID: "new", Type: audit.EventBlockedAttempt, CreatedAt: now.Add(-time.Hour)},
		))

		n, err := newLogger(storage, now).Cleanup(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, 1, storage.Len())
	})

	t.Run("storage failure", func(t *testing.T) {
		t.Parallel()
		storage := &MockStorage{}
		storage.On("DeleteBefore", ctx, now.Add(-time.Hour)).Return(int64(0), errors.New("down"))

		_, err := newLogger(storage, now).Cleanup(ctx, time.Hour)
		assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
	})
}

func TestLogger_StoreFailure(t *testing.T) {
	t.Parallel()

	storage := &MockStorage{}
	storage.On("Store", mock.Anything, mock.Anything).Return(errors.New("down"))

	err := newLogger(storage, time.Now()).BlockedAttempt(context.Background(), 1, "like", time.Minute)
	assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
}

func TestNew_NilStoragePanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { audit.New(nil) })
}
