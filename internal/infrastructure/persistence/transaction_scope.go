package persistence

import (
	"context"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/event"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions
type GormTransactionScope struct {
	db         *gorm.DB
	serializer *event.EventSerializer
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, serializer *event.EventSerializer) *GormTransactionScope {
	return &GormTransactionScope{db: db, serializer: serializer}
}

// Execute runs fn within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, serializer: s.serializer})
	})
}

// Reader returns repositories bound to the plain connection pool
func (s *GormTransactionScope) Reader() appfinance.TransactionalRepositories {
	return &gormTransactionalRepositories{tx: s.db, serializer: s.serializer}
}

type gormTransactionalRepositories struct {
	tx         *gorm.DB
	serializer *event.EventSerializer
}

func (r *gormTransactionalRepositories) Documents() finance.SetoffDocumentRepository {
	return NewGormSetoffDocumentRepository(r.tx)
}

func (r *gormTransactionalRepositories) SourceLines() finance.SourceLineRepository {
	return NewGormSourceLineRepository(r.tx)
}

func (r *gormTransactionalRepositories) Prepayments() finance.PrepaymentRepository {
	return NewGormPrepaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Usages() finance.PrepaymentUsageRepository {
	return NewGormPrepaymentUsageRepository(r.tx)
}

func (r *gormTransactionalRepositories) Transactions() finance.FinancialTransactionRepository {
	return NewGormFinancialTransactionRepository(r.tx)
}

func (r *gormTransactionalRepositories) Balances() finance.AccountBalanceRepository {
	return NewGormAccountBalanceRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() shared.EventPublisher {
	return event.NewTxOutboxPublisher(r.serializer, r.tx)
}

var _ appfinance.TransactionScope = (*GormTransactionScope)(nil)
