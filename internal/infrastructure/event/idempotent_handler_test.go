package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_Handle_NewEvent(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, int64(1), handler.Metrics().EventsProcessed.Load())
}

func TestIdempotentHandler_Handle_DuplicateEvent(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, int64(1), handler.Metrics().EventsDuplicate.Load())
}

func TestIdempotentHandler_FailureAllowsRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())
	inner.On("Handle", mock.Anything, event).Return(errors.New("bucket unavailable")).Once()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.Error(t, handler.Handle(context.Background(), event))
	processed, err := store.IsProcessed(context.Background(), event.EventID().String())
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, handler.Handle(context.Background(), event))
	inner.AssertExpectations(t)
	stats := handler.Metrics().Stats()
	assert.Equal(t, int64(1), stats.EventsFailed)
	assert.Equal(t, int64(1), stats.EventsProcessed)
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())

	store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).
		Return(false, errors.New("redis down"))
	inner.On("Handle", mock.Anything, event).Return(errors.New("still failing"))

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	require.Error(t, handler.Handle(context.Background(), event))

	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_SharedMetricsAndTypes(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	metrics := &IdempotencyMetrics{}

	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{"TestEvent"})
	inner.On("Handle", mock.Anything, mock.Anything).Return(nil)

	h1 := NewIdempotentHandler(inner, store, zap.NewNop(), WithIdempotencyMetrics(metrics))
	h2 := NewIdempotentHandler(inner, store, zap.NewNop(), WithIdempotencyMetrics(metrics))
	assert.Equal(t, []string{"TestEvent"}, h1.EventTypes())

	require.NoError(t, h1.Handle(context.Background(), newTestEvent("TestEvent", uuid.New())))
	require.NoError(t, h2.Handle(context.Background(), newTestEvent("TestEvent", uuid.New())))
	assert.Equal(t, int64(2), metrics.Stats().EventsProcessed)
}

func TestIdempotentHandler_ConcurrentDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newTestEvent("TestEvent", uuid.New())
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	const workers = 50
	errs := make(chan error, workers)
	for range workers {
		go func() { errs <- handler.Handle(context.Background(), event) }()
	}
	for range workers {
		assert.NoError(t, <-errs)
	}

	inner.AssertExpectations(t)
	assert.Equal(t, int64(workers-1), handler.Metrics().EventsDuplicate.Load())
}
