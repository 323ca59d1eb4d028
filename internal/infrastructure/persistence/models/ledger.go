package models

import (
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinancialTransactionModel is an immutable ledger row. Only reversed_by_id
// is ever updated.
type FinancialTransactionModel struct {
	ID              uuid.UUID               `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_fin_tx_account_seq,priority:1"`
	AccountKind     finance.AccountKind     `gorm:"type:varchar(20);not null;uniqueIndex:idx_fin_tx_account_seq,priority:2"`
	AccountID       uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_fin_tx_account_seq,priority:3"`
	Sequence        int64                   `gorm:"not null;uniqueIndex:idx_fin_tx_account_seq,priority:4"`
	Amount          decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	BalanceBefore   decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	BalanceAfter    decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	TransactionType finance.TransactionType `gorm:"type:varchar(30);not null"`
	TransactionDate time.Time               `gorm:"not null"`
	SourceType      string                  `gorm:"type:varchar(30);not null;index:idx_fin_tx_source,priority:1"`
	SourceID        uuid.UUID               `gorm:"type:uuid;not null;index:idx_fin_tx_source,priority:2"`
	ForeignCurrency *string                 `gorm:"type:varchar(3)"`
	ForeignAmount   decimal.NullDecimal     `gorm:"type:decimal(18,2)"`
	ExchangeRate    decimal.NullDecimal     `gorm:"type:decimal(18,6)"`
	ReversalOfID    *uuid.UUID              `gorm:"type:uuid;uniqueIndex"`
	ReversedByID    *uuid.UUID              `gorm:"type:uuid"`
	Remark          string                  `gorm:"type:varchar(500)"`
	CreatedAt       time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FinancialTransactionModel) TableName() string {
	return "financial_transactions"
}

// FinancialTransactionModelFromDomain builds a model from a ledger entry
func FinancialTransactionModelFromDomain(t *finance.FinancialTransaction) *FinancialTransactionModel {
	m := &FinancialTransactionModel{
		ID:              t.ID,
		TenantID:        t.TenantID,
		AccountKind:     t.Account.Kind,
		AccountID:       t.Account.ID,
		Sequence:        t.Sequence,
		Amount:          t.Amount,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		TransactionType: t.Type,
		TransactionDate: t.TransactionDate,
		SourceType:      t.Source.Type,
		SourceID:        t.Source.ID,
		ReversalOfID:    t.ReversalOfID,
		ReversedByID:    t.ReversedByID,
		Remark:          t.Remark,
		CreatedAt:       t.CreatedAt,
	}
	setForeign(t.Foreign, &m.ForeignCurrency, &m.ForeignAmount, &m.ExchangeRate)
	return m
}

// ToDomain rebuilds the ledger entry
func (m *FinancialTransactionModel) ToDomain() *finance.FinancialTransaction {
	return &finance.FinancialTransaction{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Account:         finance.AccountRef{Kind: m.AccountKind, ID: m.AccountID},
		Sequence:        m.Sequence,
		Amount:          m.Amount,
		BalanceBefore:   m.BalanceBefore,
		BalanceAfter:    m.BalanceAfter,
		Type:            m.TransactionType,
		TransactionDate: m.TransactionDate,
		Source:          finance.DocumentRef{Type: m.SourceType, ID: m.SourceID},
		Foreign:         getForeign(m.ForeignCurrency, m.ForeignAmount, m.ExchangeRate),
		ReversalOfID:    m.ReversalOfID,
		ReversedByID:    m.ReversedByID,
		Remark:          m.Remark,
		CreatedAt:       m.CreatedAt,
	}
}

// AccountBalanceModel is the head row of an account's balance chain
type AccountBalanceModel struct {
	TenantID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	AccountKind       finance.AccountKind `gorm:"type:varchar(20);primaryKey"`
	AccountID         uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Balance           decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	LastTransactionID *uuid.UUID          `gorm:"type:uuid"`
	Sequence          int64               `gorm:"not null;default:0"`
	Version           int                 `gorm:"not null;default:1"`
	UpdatedAt         time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountBalanceModel) TableName() string {
	return "financial_account_balances"
}

// AccountBalanceModelFromDomain builds a model from a chain head
func AccountBalanceModelFromDomain(b *finance.AccountBalance) *AccountBalanceModel {
	return &AccountBalanceModel{
		TenantID:          b.TenantID,
		AccountKind:       b.Account.Kind,
		AccountID:         b.Account.ID,
		Balance:           b.Balance,
		LastTransactionID: b.LastTransactionID,
		Sequence:          b.Sequence,
		Version:           b.Version,
		UpdatedAt:         b.UpdatedAt,
	}
}

// ToDomain rebuilds the chain head
func (m *AccountBalanceModel) ToDomain() *finance.AccountBalance {
	return &finance.AccountBalance{
		TenantID:          m.TenantID,
		Account:           finance.AccountRef{Kind: m.AccountKind, ID: m.AccountID},
		Balance:           m.Balance,
		LastTransactionID: m.LastTransactionID,
		Sequence:          m.Sequence,
		Version:           m.Version,
		UpdatedAt:         m.UpdatedAt,
	}
}

// AllModels lists every model for AutoMigrate in tests and local sqlite runs
func AllModels() []any {
	return []any{
		&SetoffDocumentModel{},
		&SetoffPaymentModel{},
		&SetoffProductDetailModel{},
		&SourceLineModel{},
		&SetoffPrepaymentModel{},
		&SetoffPrepaymentUsageModel{},
		&FinancialTransactionModel{},
		&AccountBalanceModel{},
		&OutboxEntryModel{},
	}
}
