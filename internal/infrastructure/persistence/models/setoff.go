package models

import (
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SetoffDocumentModel is the header row of a setoff document
type SetoffDocumentModel struct {
	TenantAggregateModel
	Code         string                     `gorm:"type:varchar(50);not null;index:idx_setoff_doc_code"`
	Direction    finance.Direction          `gorm:"type:varchar(20);not null;index"`
	DocumentDate time.Time                  `gorm:"not null;index"`
	CompanyID    uuid.UUID                  `gorm:"type:uuid;not null"`
	PartyID      uuid.UUID                  `gorm:"type:uuid;not null;index"`
	TotalAmount  decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	Status       finance.DocumentStatus     `gorm:"type:varchar(20);not null;index"`
	Remark       string                     `gorm:"type:varchar(500)"`
	VoidedAt     *time.Time
	VoidReason   string                     `gorm:"type:varchar(500)"`
	Payments     []SetoffPaymentModel       `gorm:"foreignKey:DocumentID"`
	Details      []SetoffProductDetailModel `gorm:"foreignKey:DocumentID"`
}

// TableName returns the table name for GORM
func (SetoffDocumentModel) TableName() string {
	return "setoff_documents"
}

// SetoffPaymentModel is one payment line of a document
type SetoffPaymentModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	DocumentID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	LineNo          int                 `gorm:"not null"`
	Amount          decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Allowance       decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	BankAccountID   *uuid.UUID          `gorm:"type:uuid"`
	PaymentMethod   string              `gorm:"type:varchar(30)"`
	ForeignCurrency *string             `gorm:"type:varchar(3)"`
	ForeignAmount   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	ExchangeRate    decimal.NullDecimal `gorm:"type:decimal(18,6)"`
}

// TableName returns the table name for GORM
func (SetoffPaymentModel) TableName() string {
	return "setoff_payments"
}

// SetoffProductDetailModel allocates document funds to one source line
type SetoffProductDetailModel struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey"`
	TenantID         uuid.UUID          `gorm:"type:uuid;not null;index:idx_setoff_detail_source,priority:1"`
	DocumentID       uuid.UUID          `gorm:"type:uuid;not null;index"`
	LineNo           int                `gorm:"not null"`
	SourceKind       finance.SourceKind `gorm:"type:varchar(30);not null;index:idx_setoff_detail_source,priority:2"`
	SourceID         uuid.UUID          `gorm:"type:uuid;not null;index:idx_setoff_detail_source,priority:3"`
	CurrentSettled   decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	CurrentAllowance decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	TotalSettled     decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	TotalAllowance   decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SetoffProductDetailModel) TableName() string {
	return "setoff_product_details"
}

// FromDomain populates the header and child rows
func (m *SetoffDocumentModel) FromDomain(d *finance.SetoffDocument) {
	m.FromDomainAggregate(d.TenantAggregateRoot)
	m.Code = d.Code
	m.Direction = d.Direction
	m.DocumentDate = d.DocumentDate
	m.CompanyID = d.CompanyID
	m.PartyID = d.PartyID
	m.TotalAmount = d.TotalAmount
	m.Status = d.Status
	m.Remark = d.Remark
	m.VoidedAt = d.VoidedAt
	m.VoidReason = d.VoidReason

	m.Payments = make([]SetoffPaymentModel, len(d.Payments))
	for i, p := range d.Payments {
		pm := SetoffPaymentModel{
			ID:            p.ID,
			DocumentID:    d.ID,
			LineNo:        i + 1,
			Amount:        p.Amount,
			Allowance:     p.Allowance,
			BankAccountID: p.BankAccountID,
			PaymentMethod: p.PaymentMethod,
		}
		setForeign(p.Foreign, &pm.ForeignCurrency, &pm.ForeignAmount, &pm.ExchangeRate)
		m.Payments[i] = pm
	}

	m.Details = make([]SetoffProductDetailModel, len(d.Details))
	for i, det := range d.Details {
		m.Details[i] = SetoffProductDetailModel{
			ID:               det.ID,
			TenantID:         d.TenantID,
			DocumentID:       d.ID,
			LineNo:           i + 1,
			SourceKind:       det.Source.Kind(),
			SourceID:         det.Source.LineID(),
			CurrentSettled:   det.CurrentSettled,
			CurrentAllowance: det.CurrentAllowance,
			TotalSettled:     det.TotalSettled,
			TotalAllowance:   det.TotalAllowance,
		}
	}
}

// ToDomain rebuilds the document. Usages and created prepayments are loaded
// by their own repositories.
func (m *SetoffDocumentModel) ToDomain() (*finance.SetoffDocument, error) {
	d := &finance.SetoffDocument{
		TenantAggregateRoot: m.ToDomainAggregate(),
		Code:                m.Code,
		Direction:           m.Direction,
		DocumentDate:        m.DocumentDate,
		CompanyID:           m.CompanyID,
		PartyID:             m.PartyID,
		TotalAmount:         m.TotalAmount,
		Status:              m.Status,
		Remark:              m.Remark,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
		Payments:            make([]finance.SetoffPayment, len(m.Payments)),
		Details:             make([]finance.SetoffProductDetail, len(m.Details)),
	}
	for i, p := range m.Payments {
		d.Payments[i] = finance.SetoffPayment{
			ID:            p.ID,
			DocumentID:    p.DocumentID,
			Amount:        p.Amount,
			Allowance:     p.Allowance,
			BankAccountID: p.BankAccountID,
			PaymentMethod: p.PaymentMethod,
			Foreign:       getForeign(p.ForeignCurrency, p.ForeignAmount, p.ExchangeRate),
		}
	}
	for i, det := range m.Details {
		ref, err := finance.NewSourceRef(det.SourceKind, det.SourceID)
		if err != nil {
			return nil, err
		}
		d.Details[i] = finance.SetoffProductDetail{
			ID:               det.ID,
			DocumentID:       det.DocumentID,
			Source:           ref,
			CurrentSettled:   det.CurrentSettled,
			CurrentAllowance: det.CurrentAllowance,
			TotalSettled:     det.TotalSettled,
			TotalAllowance:   det.TotalAllowance,
		}
	}
	return d, nil
}

// SourceLineModel is a registered delivery, receiving or return line
type SourceLineModel struct {
	TenantAggregateModel
	SourceKind     finance.SourceKind `gorm:"type:varchar(30);not null;index:idx_source_line_ref,priority:1"`
	SourceID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_source_line_ref,priority:2"`
	PartyID        uuid.UUID          `gorm:"type:uuid;not null;index:idx_source_line_party,priority:1"`
	Direction      finance.Direction  `gorm:"type:varchar(20);not null;index:idx_source_line_party,priority:2"`
	OriginalAmount decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SourceLineModel) TableName() string {
	return "setoff_source_lines"
}

// FromDomain populates the model
func (m *SourceLineModel) FromDomain(l *finance.SourceLine) {
	m.FromDomainAggregate(l.TenantAggregateRoot)
	m.SourceKind = l.Ref.Kind()
	m.SourceID = l.Ref.LineID()
	m.PartyID = l.PartyID
	m.Direction = l.Direction()
	m.OriginalAmount = l.OriginalAmount
}

// ToDomain rebuilds the source line
func (m *SourceLineModel) ToDomain() (*finance.SourceLine, error) {
	ref, err := finance.NewSourceRef(m.SourceKind, m.SourceID)
	if err != nil {
		return nil, err
	}
	return &finance.SourceLine{
		TenantAggregateRoot: m.ToDomainAggregate(),
		Ref:                 ref,
		PartyID:             m.PartyID,
		OriginalAmount:      m.OriginalAmount,
	}, nil
}

// SetoffPrepaymentModel is a standing credit of a party
type SetoffPrepaymentModel struct {
	TenantAggregateModel
	PartyID          uuid.UUID                `gorm:"type:uuid;not null;index:idx_prepayment_party,priority:1"`
	Direction        finance.Direction        `gorm:"type:varchar(20);not null;index:idx_prepayment_party,priority:2"`
	Amount           decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	UsedAmount       decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	SourceCode       string                   `gorm:"type:varchar(50)"`
	OriginDocumentID *uuid.UUID               `gorm:"type:uuid;index"`
	Status           finance.PrepaymentStatus `gorm:"type:varchar(20);not null"`
	VoidedAt         *time.Time
}

// TableName returns the table name for GORM
func (SetoffPrepaymentModel) TableName() string {
	return "setoff_prepayments"
}

// FromDomain populates the model
func (m *SetoffPrepaymentModel) FromDomain(p *finance.SetoffPrepayment) {
	m.FromDomainAggregate(p.TenantAggregateRoot)
	m.PartyID = p.PartyID
	m.Direction = p.Direction
	m.Amount = p.Amount
	m.UsedAmount = p.UsedAmount
	m.SourceCode = p.SourceCode
	m.OriginDocumentID = p.OriginDocumentID
	m.Status = p.Status
	m.VoidedAt = p.VoidedAt
}

// ToDomain rebuilds the prepayment
func (m *SetoffPrepaymentModel) ToDomain() *finance.SetoffPrepayment {
	return &finance.SetoffPrepayment{
		TenantAggregateRoot: m.ToDomainAggregate(),
		PartyID:             m.PartyID,
		Direction:           m.Direction,
		Amount:              m.Amount,
		UsedAmount:          m.UsedAmount,
		SourceCode:          m.SourceCode,
		OriginDocumentID:    m.OriginDocumentID,
		Status:              m.Status,
		VoidedAt:            m.VoidedAt,
	}
}

// SetoffPrepaymentUsageModel records credit drawn by a document
type SetoffPrepaymentUsageModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PrepaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Reversed     bool            `gorm:"not null;default:false"`
	ReversedAt   *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SetoffPrepaymentUsageModel) TableName() string {
	return "setoff_prepayment_usages"
}

// SetoffPrepaymentUsageModelFromDomain builds a model from a usage
func SetoffPrepaymentUsageModelFromDomain(u *finance.SetoffPrepaymentUsage) *SetoffPrepaymentUsageModel {
	return &SetoffPrepaymentUsageModel{
		ID:           u.ID,
		TenantID:     u.TenantID,
		PrepaymentID: u.PrepaymentID,
		DocumentID:   u.DocumentID,
		Amount:       u.Amount,
		Reversed:     u.Reversed,
		ReversedAt:   u.ReversedAt,
		CreatedAt:    u.CreatedAt,
	}
}

// ToDomain rebuilds the usage
func (m *SetoffPrepaymentUsageModel) ToDomain() *finance.SetoffPrepaymentUsage {
	return &finance.SetoffPrepaymentUsage{
		ID:           m.ID,
		TenantID:     m.TenantID,
		PrepaymentID: m.PrepaymentID,
		DocumentID:   m.DocumentID,
		Amount:       m.Amount,
		Reversed:     m.Reversed,
		ReversedAt:   m.ReversedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func setForeign(f *valueobject.ForeignAmount, currency **string, amount, rate *decimal.NullDecimal) {
	if f == nil {
		return
	}
	code := f.Currency.String()
	*currency = &code
	*amount = decimal.NewNullDecimal(f.Amount)
	*rate = decimal.NewNullDecimal(f.ExchangeRate)
}

func getForeign(currency *string, amount, rate decimal.NullDecimal) *valueobject.ForeignAmount {
	if currency == nil || !amount.Valid || !rate.Valid {
		return nil
	}
	return &valueobject.ForeignAmount{
		Currency:     valueobject.Currency(*currency),
		Amount:       amount.Decimal,
		ExchangeRate: rate.Decimal,
	}
}
