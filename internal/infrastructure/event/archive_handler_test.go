package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (w *memoryWriter) Put(_ context.Context, key string, body []byte, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[key] = body
	return nil
}

// stubDocuments serves a single document
type stubDocuments struct {
	finance.SetoffDocumentRepository
	doc *finance.SetoffDocument
}

func (s stubDocuments) FindByID(_ context.Context, _, id uuid.UUID) (*finance.SetoffDocument, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, shared.NewNotFoundError("setoff document", id)
	}
	return s.doc, nil
}

func committedDocument(t *testing.T) *finance.SetoffDocument {
	t.Helper()
	doc, err := finance.NewSetoffDocument(uuid.New(), "SO-20240301-0a1b2c3d", finance.DirectionReceivable,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), uuid.New(), uuid.New(), "march receipts")
	require.NoError(t, err)

	require.NoError(t, doc.AddPayment(finance.PaymentInput{Amount: decimal.NewFromInt(100)}))
	require.NoError(t, doc.AddDetail(finance.DeliveryLineRef{ID: uuid.New()}, decimal.NewFromInt(100), decimal.Zero))
	require.NoError(t, doc.Seal())
	doc.Commit(nil)
	return doc
}

func TestDocumentArchiveHandler_WritesSnapshot(t *testing.T) {
	doc := committedDocument(t)
	writer := &memoryWriter{}
	handler := NewDocumentArchiveHandler(stubDocuments{doc: doc}, writer, zap.NewNop())

	events := doc.GetDomainEvents()
	require.NotEmpty(t, events)
	created := events[len(events)-1]
	require.Equal(t, finance.EventTypeSetoffDocumentCreated, created.EventType())

	require.NoError(t, handler.Handle(context.Background(), created))

	key := ArchiveKey(doc.TenantID, doc.ID, created.EventID())
	body, ok := writer.objects[key]
	require.True(t, ok)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, doc.Code, snapshot["code"])
	assert.Equal(t, "ACTIVE", snapshot["status"])
	assert.Equal(t, "100", snapshot["total_amount"])
	assert.Len(t, snapshot["details"], 1)
}

func TestDocumentArchiveHandler_PropagatesWriteFailure(t *testing.T) {
	doc := committedDocument(t)
	writer := &memoryWriter{err: errors.New("bucket missing")}
	handler := NewDocumentArchiveHandler(stubDocuments{doc: doc}, writer, zap.NewNop())

	event := finance.NewSetoffDocumentVoidedEvent(doc)
	assert.ErrorContains(t, handler.Handle(context.Background(), event), "bucket missing")
}

func TestDocumentArchiveHandler_IgnoresOtherEvents(t *testing.T) {
	handler := NewDocumentArchiveHandler(stubDocuments{}, &memoryWriter{}, zap.NewNop())

	assert.NoError(t, handler.Handle(context.Background(), newTestEvent("TestEvent", uuid.New())))
	assert.ElementsMatch(t, []string{
		finance.EventTypeSetoffDocumentCreated,
		finance.EventTypeSetoffDocumentVoided,
	}, handler.EventTypes())
}

func TestArchiveKey(t *testing.T) {
	tenant := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	doc := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	evt := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	assert.Equal(t,
		"setoff/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/33333333-3333-3333-3333-333333333333.json",
		ArchiveKey(tenant, doc, evt))
}
