package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ObjectWriter stores a blob under key
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// DocumentArchiveHandler writes a JSON snapshot of a setoff document to
// object storage for every created or voided event
type DocumentArchiveHandler struct {
	documents finance.SetoffDocumentRepository
	writer    ObjectWriter
	logger    *zap.Logger
}

// NewDocumentArchiveHandler creates an archive handler
func NewDocumentArchiveHandler(documents finance.SetoffDocumentRepository, writer ObjectWriter, logger *zap.Logger) *DocumentArchiveHandler {
	return &DocumentArchiveHandler{documents: documents, writer: writer, logger: logger}
}

// EventTypes returns the document lifecycle events
func (h *DocumentArchiveHandler) EventTypes() []string {
	return []string{
		finance.EventTypeSetoffDocumentCreated,
		finance.EventTypeSetoffDocumentVoided,
	}
}

// Handle loads the current document and stores its snapshot
func (h *DocumentArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var documentID uuid.UUID
	switch e := event.(type) {
	case *finance.SetoffDocumentCreatedEvent:
		documentID = e.DocumentID
	case *finance.SetoffDocumentVoidedEvent:
		documentID = e.DocumentID
	default:
		return nil
	}

	doc, err := h.documents.FindByID(ctx, event.TenantID(), documentID)
	if err != nil {
		return fmt.Errorf("load document %s for archive: %w", documentID, err)
	}

	body, err := json.MarshalIndent(newDocumentSnapshot(doc, event), "", "  ")
	if err != nil {
		return fmt.Errorf("encode document snapshot: %w", err)
	}

	key := ArchiveKey(event.TenantID(), documentID, event.EventID())
	if err := h.writer.Put(ctx, key, body, "application/json"); err != nil {
		return err
	}
	h.logger.Debug("document archived",
		zap.String("key", key),
		zap.String("event_type", event.EventType()),
	)
	return nil
}

// ArchiveKey is the object key of a document snapshot
func ArchiveKey(tenantID, documentID, eventID uuid.UUID) string {
	return fmt.Sprintf("setoff/%s/%s/%s.json", tenantID, documentID, eventID)
}

type documentSnapshot struct {
	EventID      uuid.UUID                `json:"event_id"`
	EventType    string                   `json:"event_type"`
	ArchivedAt   time.Time                `json:"archived_at"`
	ID           uuid.UUID                `json:"id"`
	TenantID     uuid.UUID                `json:"tenant_id"`
	Code         string                   `json:"code"`
	Direction    finance.Direction        `json:"direction"`
	DocumentDate time.Time                `json:"document_date"`
	CompanyID    uuid.UUID                `json:"company_id"`
	PartyID      uuid.UUID                `json:"party_id"`
	TotalAmount  decimal.Decimal          `json:"total_amount"`
	Status       finance.DocumentStatus   `json:"status"`
	Remark       string                   `json:"remark,omitempty"`
	VoidedAt     *time.Time               `json:"voided_at,omitempty"`
	VoidReason   string                   `json:"void_reason,omitempty"`
	Version      int                      `json:"version"`
	Payments     []paymentSnapshot        `json:"payments"`
	Details      []finance.DetailSnapshot `json:"details"`
	Usages       []usageSnapshot          `json:"prepayment_usages,omitempty"`
	Prepayments  []prepaymentSnapshot     `json:"created_prepayments,omitempty"`
}

type paymentSnapshot struct {
	Amount        decimal.Decimal  `json:"amount"`
	Allowance     decimal.Decimal  `json:"allowance"`
	BankAccountID *uuid.UUID       `json:"bank_account_id,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	ForeignAmount *decimal.Decimal `json:"foreign_amount,omitempty"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate,omitempty"`
}

type usageSnapshot struct {
	ID           uuid.UUID       `json:"id"`
	PrepaymentID uuid.UUID       `json:"prepayment_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reversed     bool            `json:"reversed"`
}

type prepaymentSnapshot struct {
	ID         uuid.UUID                `json:"id"`
	Amount     decimal.Decimal          `json:"amount"`
	UsedAmount decimal.Decimal          `json:"used_amount"`
	Status     finance.PrepaymentStatus `json:"status"`
}

func newDocumentSnapshot(doc *finance.SetoffDocument, event shared.DomainEvent) documentSnapshot {
	s := documentSnapshot{
		EventID:      event.EventID(),
		EventType:    event.EventType(),
		ArchivedAt:   time.Now().UTC(),
		ID:           doc.ID,
		TenantID:     doc.TenantID,
		Code:         doc.Code,
		Direction:    doc.Direction,
		DocumentDate: doc.DocumentDate,
		CompanyID:    doc.CompanyID,
		PartyID:      doc.PartyID,
		TotalAmount:  doc.TotalAmount,
		Status:       doc.Status,
		Remark:       doc.Remark,
		VoidedAt:     doc.VoidedAt,
		VoidReason:   doc.VoidReason,
		Version:      doc.Version,
		Payments:     make([]paymentSnapshot, 0, len(doc.Payments)),
		Details:      make([]finance.DetailSnapshot, 0, len(doc.Details)),
	}
	for _, p := range doc.Payments {
		ps := paymentSnapshot{
			Amount:        p.Amount,
			Allowance:     p.Allowance,
			BankAccountID: p.BankAccountID,
			PaymentMethod: p.PaymentMethod,
		}
		if p.Foreign != nil {
			amount, rate := p.Foreign.Amount, p.Foreign.ExchangeRate
			ps.Currency = p.Foreign.Currency.String()
			ps.ForeignAmount = &amount
			ps.ExchangeRate = &rate
		}
		s.Payments = append(s.Payments, ps)
	}
	for _, d := range doc.Details {
		s.Details = append(s.Details, finance.DetailSnapshot{
			SourceKind:       d.Source.Kind(),
			SourceID:         d.Source.LineID(),
			CurrentSettled:   d.CurrentSettled,
			CurrentAllowance: d.CurrentAllowance,
			TotalSettled:     d.TotalSettled,
			TotalAllowance:   d.TotalAllowance,
		})
	}
	for _, u := range doc.Usages {
		s.Usages = append(s.Usages, usageSnapshot{
			ID:           u.ID,
			PrepaymentID: u.PrepaymentID,
			Amount:       u.Amount,
			Reversed:     u.Reversed,
		})
	}
	for _, p := range doc.CreatedPrepayments {
		s.Prepayments = append(s.Prepayments, prepaymentSnapshot{
			ID:         p.ID,
			Amount:     p.Amount,
			UsedAmount: p.UsedAmount,
			Status:     p.Status,
		})
	}
	return s
}

var _ shared.EventHandler = (*DocumentArchiveHandler)(nil)
