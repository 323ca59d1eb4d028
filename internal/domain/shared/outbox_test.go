package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseDomainEvent
}

func newTestEntry() *OutboxEntry {
	evt := &testEvent{BaseDomainEvent: NewBaseDomainEvent("TestEvent", "Test", uuid.New(), uuid.New())}
	return NewOutboxEntry(evt, []byte(`{}`))
}

func TestNewOutboxEntry(t *testing.T) {
	evt := &testEvent{BaseDomainEvent: NewBaseDomainEvent("TestEvent", "Test", uuid.New(), uuid.New())}
	entry := NewOutboxEntry(evt, []byte(`{"a":1}`))

	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, evt.TenantID(), entry.TenantID)
	assert.Equal(t, "TestEvent", entry.EventType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultOutboxMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules exponential retry", func(t *testing.T) {
		entry := newTestEntry()
		entry.MarkFailed("boom")
		require.NotNil(t, entry.NextRetryAt)
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))

		entry.MarkFailed("boom")
		assert.Equal(t, 2*time.Second, entry.NextRetryAt.Sub(entry.UpdatedAt))
	})

	t.Run("dies after max retries", func(t *testing.T) {
		entry := newTestEntry()
		for i := 0; i < entry.MaxRetries; i++ {
			entry.MarkFailed("boom")
		}
		assert.True(t, entry.IsDead())
		assert.Nil(t, entry.NextRetryAt)
		assert.Equal(t, "boom", entry.LastError)
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := newTestEntry()
	entry.MarkSent()
	assert.Equal(t, OutboxStatusSent, entry.Status)
	assert.NotNil(t, entry.ProcessedAt)
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	entry := newTestEntry()
	assert.ErrorIs(t, entry.ResetForRetry(), ErrInvalidState)

	entry.MaxRetries = 1
	entry.MarkFailed("boom")
	require.True(t, entry.IsDead())

	require.NoError(t, entry.ResetForRetry())
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Zero(t, entry.RetryCount)
	assert.Empty(t, entry.LastError)
}
