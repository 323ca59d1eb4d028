package finance

import (
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeSetoffDocumentCreated = "SetoffDocumentCreated"
	EventTypeSetoffDocumentVoided  = "SetoffDocumentVoided"
	EventTypePrepaymentCreated     = "PrepaymentCreated"

	AggregateTypeSetoffDocument = "SetoffDocument"
	AggregateTypePrepayment     = "SetoffPrepayment"
)

// DetailSnapshot is the event form of a product detail
type DetailSnapshot struct {
	SourceKind       SourceKind      `json:"source_kind"`
	SourceID         uuid.UUID       `json:"source_id"`
	CurrentSettled   decimal.Decimal `json:"current_settled"`
	CurrentAllowance decimal.Decimal `json:"current_allowance"`
	TotalSettled     decimal.Decimal `json:"total_settled"`
	TotalAllowance   decimal.Decimal `json:"total_allowance"`
}

// SetoffDocumentCreatedEvent is raised when a document is committed
type SetoffDocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID        `json:"document_id"`
	Code         string           `json:"code"`
	Direction    Direction        `json:"direction"`
	PartyID      uuid.UUID        `json:"party_id"`
	CompanyID    uuid.UUID        `json:"company_id"`
	DocumentDate time.Time        `json:"document_date"`
	TotalAmount  decimal.Decimal  `json:"total_amount"`
	Allowance    decimal.Decimal  `json:"allowance"`
	Details      []DetailSnapshot `json:"details"`
}

// NewSetoffDocumentCreatedEvent creates a SetoffDocumentCreatedEvent without details
func NewSetoffDocumentCreatedEvent(d *SetoffDocument) *SetoffDocumentCreatedEvent {
	return &SetoffDocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSetoffDocumentCreated, AggregateTypeSetoffDocument, d.ID, d.TenantID),
		DocumentID:      d.ID,
		Code:            d.Code,
		Direction:       d.Direction,
		PartyID:         d.PartyID,
		CompanyID:       d.CompanyID,
		DocumentDate:    d.DocumentDate,
		TotalAmount:     d.CashFunds(),
		Allowance:       d.AllowanceFunds(),
	}
}

// CaptureDetails copies the document's details into the event
func (e *SetoffDocumentCreatedEvent) CaptureDetails(d *SetoffDocument) {
	e.Details = make([]DetailSnapshot, 0, len(d.Details))
	for _, det := range d.Details {
		e.Details = append(e.Details, DetailSnapshot{
			SourceKind:       det.Source.Kind(),
			SourceID:         det.Source.LineID(),
			CurrentSettled:   det.CurrentSettled,
			CurrentAllowance: det.CurrentAllowance,
			TotalSettled:     det.TotalSettled,
			TotalAllowance:   det.TotalAllowance,
		})
	}
}

// SetoffDocumentVoidedEvent is raised when a document is voided
type SetoffDocumentVoidedEvent struct {
	shared.BaseDomainEvent
	DocumentID  uuid.UUID       `json:"document_id"`
	Code        string          `json:"code"`
	PartyID     uuid.UUID       `json:"party_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reason      string          `json:"reason"`
	VoidedAt    time.Time       `json:"voided_at"`
}

// NewSetoffDocumentVoidedEvent creates a SetoffDocumentVoidedEvent
func NewSetoffDocumentVoidedEvent(d *SetoffDocument) *SetoffDocumentVoidedEvent {
	var voidedAt time.Time
	if d.VoidedAt != nil {
		voidedAt = *d.VoidedAt
	}
	return &SetoffDocumentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSetoffDocumentVoided, AggregateTypeSetoffDocument, d.ID, d.TenantID),
		DocumentID:      d.ID,
		Code:            d.Code,
		PartyID:         d.PartyID,
		TotalAmount:     d.TotalAmount,
		Reason:          d.VoidReason,
		VoidedAt:        voidedAt,
	}
}

// PrepaymentCreatedEvent is raised when new prepayment credit is recorded
type PrepaymentCreatedEvent struct {
	shared.BaseDomainEvent
	PrepaymentID     uuid.UUID       `json:"prepayment_id"`
	PartyID          uuid.UUID       `json:"party_id"`
	Direction        Direction       `json:"direction"`
	Amount           decimal.Decimal `json:"amount"`
	SourceCode       string          `json:"source_code"`
	OriginDocumentID *uuid.UUID      `json:"origin_document_id,omitempty"`
}

// NewPrepaymentCreatedEvent creates a PrepaymentCreatedEvent
func NewPrepaymentCreatedEvent(p *SetoffPrepayment) *PrepaymentCreatedEvent {
	return &PrepaymentCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePrepaymentCreated, AggregateTypePrepayment, p.ID, p.TenantID),
		PrepaymentID:     p.ID,
		PartyID:          p.PartyID,
		Direction:        p.Direction,
		Amount:           p.Amount,
		SourceCode:       p.SourceCode,
		OriginDocumentID: p.OriginDocumentID,
	}
}
