package finance

import (
	"context"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
)

// TransactionScope provides transactional access to the setoff repositories.
// Everything done through the repositories handed to fn commits or rolls
// back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction. If fn returns an error
	// the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
	// Reader returns repositories outside any transaction, for queries
	Reader() TransactionalRepositories
}

// TransactionalRepositories provides access to all setoff repositories.
// All repositories returned share the same underlying database transaction.
//
// Events writes domain events to the outbox in that same transaction, so an
// event is delivered if and only if the change that raised it committed.
type TransactionalRepositories interface {
	Documents() finance.SetoffDocumentRepository
	SourceLines() finance.SourceLineRepository
	Prepayments() finance.PrepaymentRepository
	Usages() finance.PrepaymentUsageRepository
	Transactions() finance.FinancialTransactionRepository
	Balances() finance.AccountBalanceRepository
	Events() shared.EventPublisher
}
