package httpapi_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/notifycore/pkg/inbox"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/orchestrator"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, req notify.Request) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotifier) SendMulticast(ctx context.Context, userIDs []int64, req notify.Request) (*orchestrator.MulticastReport, error) {
	args := m.Called(ctx, userIDs, req)
	report, _ := args.Get(0).(*orchestrator.MulticastReport)
	return report, args.Error(1)
}

func (m *MockNotifier) GetDeliveryStatus(ctx context.Context, userID int64, count int) (orchestrator.DeliveryStatus, error) {
	args := m.Called(ctx, userID, count)
	return args.Get(0).(orchestrator.DeliveryStatus), args.Error(1)
}

func (m *MockNotifier) GetHistory(ctx context.Context, userID int64, count int) ([]inbox.Record, error) {
	args := m.Called(ctx, userID, count)
	recs, _ := args.Get(0).([]inbox.Record)
	return recs, args.Error(1)
}

func (m *MockNotifier) GetUndelivered(ctx context.Context, userID int64) ([]inbox.Record, error) {
	args := m.Called(ctx, userID)
	recs, _ := args.Get(0).([]inbox.Record)
	return recs, args.Error(1)
}

func (m *MockNotifier) ReplayMissed(ctx context.Context, userID int64) (orchestrator.ReplayResult, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(orchestrator.ReplayResult), args.Error(1)
}

func (m *MockNotifier) GetStats() orchestrator.Stats {
	return m.Called().Get(0).(orchestrator.Stats)
}

func (m *MockNotifier) IsHealthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockNotifier) GetHealthReport(ctx context.Context) orchestrator.HealthReport {
	return m.Called(ctx).Get(0).(orchestrator.HealthReport)
}

func (m *MockNotifier) RefreshSystem(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Pending(ctx context.Context, userID int64) ([]*notify.QueuedNotification, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]*notify.QueuedNotification)
	return items, args.Error(1)
}

func (m *MockQueue) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockQueue) MarkUserOnline(ctx context.Context, userID int64, channel string) (int, error) {
	args := m.Called(ctx, userID, channel)
	return args.Int(0), args.Error(1)
}

func (m *MockQueue) MarkUserOffline(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockQueue) Touch(ctx context.Context, userID int64, channel string) (int, error) {
	args := m.Called(ctx, userID, channel)
	return args.Int(0), args.Error(1)
}
