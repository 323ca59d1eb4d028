package finance

import (
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PrepaymentStatus represents the status of a prepayment credit
type PrepaymentStatus string

const (
	PrepaymentStatusActive PrepaymentStatus = "ACTIVE"
	PrepaymentStatusVoided PrepaymentStatus = "VOIDED"
)

// SetoffPrepayment is a standing credit balance for a party.
// UsedAmount never exceeds Amount and always equals the sum of its
// non-reversed usages.
type SetoffPrepayment struct {
	shared.TenantAggregateRoot
	PartyID          uuid.UUID
	Direction        Direction
	Amount           decimal.Decimal
	UsedAmount       decimal.Decimal
	SourceCode       string
	OriginDocumentID *uuid.UUID
	Status           PrepaymentStatus
	VoidedAt         *time.Time
}

// NewSetoffPrepayment creates a credit record with nothing used
func NewSetoffPrepayment(
	tenantID, partyID uuid.UUID,
	direction Direction,
	amount decimal.Decimal,
	sourceCode string,
	originDocumentID *uuid.UUID,
) (*SetoffPrepayment, error) {
	if partyID == uuid.Nil {
		return nil, shared.NewValidationError("party_id", "party is required")
	}
	if !direction.IsValid() {
		return nil, shared.NewValidationError("direction", "direction must be RECEIVABLE or PAYABLE")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "prepayment amount must be positive")
	}
	if err := checkMoney("amount", amount); err != nil {
		return nil, err
	}
	if len(sourceCode) > 50 {
		return nil, shared.NewValidationError("source_code", "source code cannot exceed 50 characters")
	}

	p := &SetoffPrepayment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PartyID:             partyID,
		Direction:           direction,
		Amount:              amount,
		UsedAmount:          decimal.Zero,
		SourceCode:          sourceCode,
		OriginDocumentID:    originDocumentID,
		Status:              PrepaymentStatusActive,
	}
	p.AddDomainEvent(NewPrepaymentCreatedEvent(p))
	return p, nil
}

// Available returns the unused credit
func (p *SetoffPrepayment) Available() decimal.Decimal {
	return p.Amount.Sub(p.UsedAmount)
}

// Use consumes amount of credit. On failure UsedAmount is unchanged.
func (p *SetoffPrepayment) Use(amount decimal.Decimal) error {
	if p.Status != PrepaymentStatusActive {
		return shared.NewInvalidStateError("prepayment %s is %s", p.ID, p.Status)
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "usage amount must be positive")
	}
	if amount.GreaterThan(p.Available()) {
		return &InsufficientCreditError{
			PrepaymentID: p.ID,
			Requested:    amount,
			Available:    p.Available(),
		}
	}
	p.UsedAmount = p.UsedAmount.Add(amount)
	p.IncrementVersion()
	return nil
}

// Release gives back credit consumed by a reversed usage
func (p *SetoffPrepayment) Release(amount decimal.Decimal) error {
	if amount.GreaterThan(p.UsedAmount) {
		return shared.NewInvalidStateError("prepayment %s cannot release %s, only %s used",
			p.ID, amount.StringFixed(2), p.UsedAmount.StringFixed(2))
	}
	p.UsedAmount = p.UsedAmount.Sub(amount)
	p.IncrementVersion()
	return nil
}

// Void cancels a prepayment that was never drawn on
func (p *SetoffPrepayment) Void() error {
	if p.Status == PrepaymentStatusVoided {
		return shared.NewInvalidStateError("prepayment %s is already voided", p.ID)
	}
	if p.UsedAmount.IsPositive() {
		return shared.NewInvalidStateError("prepayment %s has %s of credit in use and cannot be voided",
			p.ID, p.UsedAmount.StringFixed(2))
	}
	now := time.Now()
	p.Status = PrepaymentStatusVoided
	p.VoidedAt = &now
	p.IncrementVersion()
	return nil
}

// SetoffPrepaymentUsage records one document drawing on one prepayment.
// Reversed usages are kept for audit.
type SetoffPrepaymentUsage struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	PrepaymentID uuid.UUID
	DocumentID   uuid.UUID
	Amount       decimal.Decimal
	Reversed     bool
	ReversedAt   *time.Time
	CreatedAt    time.Time
}

// NewSetoffPrepaymentUsage creates a usage record
func NewSetoffPrepaymentUsage(tenantID, prepaymentID, documentID uuid.UUID, amount decimal.Decimal) (*SetoffPrepaymentUsage, error) {
	if prepaymentID == uuid.Nil {
		return nil, shared.NewValidationError("prepayment_id", "prepayment is required")
	}
	if documentID == uuid.Nil {
		return nil, shared.NewValidationError("document_id", "document is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "usage amount must be positive")
	}
	if err := checkMoney("amount", amount); err != nil {
		return nil, err
	}
	return &SetoffPrepaymentUsage{
		ID:           uuid.New(),
		TenantID:     tenantID,
		PrepaymentID: prepaymentID,
		DocumentID:   documentID,
		Amount:       amount,
		CreatedAt:    time.Now(),
	}, nil
}

// MarkReversed flags the usage as reversed
func (u *SetoffPrepaymentUsage) MarkReversed() error {
	if u.Reversed {
		return &AlreadyReversedError{Resource: "prepayment usage", ID: u.ID}
	}
	now := time.Now()
	u.Reversed = true
	u.ReversedAt = &now
	return nil
}

// PrepaymentReconciliation compares a prepayment with the sum of its usages
type PrepaymentReconciliation struct {
	PrepaymentID uuid.UUID
	UsedAmount   decimal.Decimal
	UsageTotal   decimal.Decimal
}

// Consistent reports whether UsedAmount equals the usage total
func (r PrepaymentReconciliation) Consistent() bool {
	return r.UsedAmount.Equal(r.UsageTotal)
}
