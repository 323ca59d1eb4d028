package event

import (
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RegisterAndDeserialize(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	assert.True(t, serializer.IsRegistered("TestEvent"))

	original := newTestEvent("TestEvent", uuid.New())
	data, err := serializer.Serialize(original)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize("TestEvent", data)
	require.NoError(t, err)

	got, ok := decoded.(*testEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, original.TenantID(), got.TenantID())
	assert.Equal(t, original.AggregateID(), got.AggregateID())
	assert.Equal(t, "test data", got.Data)
}

func TestEventSerializer_Deserialize_UnknownType(t *testing.T) {
	serializer := NewEventSerializer()

	_, err := serializer.Deserialize("Nope", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEventSerializer_Deserialize_InvalidJSON(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})

	_, err := serializer.Deserialize("TestEvent", []byte(`{not json`))
	assert.Error(t, err)
}

func TestNewSetoffEventSerializer(t *testing.T) {
	serializer := NewSetoffEventSerializer()

	assert.Equal(t, []string{
		finance.EventTypePrepaymentCreated,
		finance.EventTypeSetoffDocumentCreated,
		finance.EventTypeSetoffDocumentVoided,
	}, serializer.RegisteredTypes())
}

func TestEventSerializer_PrepaymentCreatedKeepsDecimals(t *testing.T) {
	serializer := NewSetoffEventSerializer()
	origin := uuid.New()
	prep, err := finance.NewSetoffPrepayment(uuid.New(), uuid.New(), finance.DirectionReceivable,
		decimal.RequireFromString("120.55"), "SO-20240101-abcdef01", &origin)
	require.NoError(t, err)

	events := prep.GetDomainEvents()
	require.Len(t, events, 1)

	data, err := serializer.Serialize(events[0])
	require.NoError(t, err)
	decoded, err := serializer.Deserialize(finance.EventTypePrepaymentCreated, data)
	require.NoError(t, err)

	got := decoded.(*finance.PrepaymentCreatedEvent)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("120.55")))
	assert.Equal(t, prep.ID, got.PrepaymentID)
	require.NotNil(t, got.OriginDocumentID)
	assert.Equal(t, origin, *got.OriginDocumentID)
	assert.WithinDuration(t, events[0].OccurredAt(), got.OccurredAt(), time.Millisecond)
}
