package finance

import (
	"context"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	shared.PageRequest
	PartyID   *uuid.UUID
	Direction Direction
	Status    DocumentStatus
	DateFrom  *time.Time
	DateTo    *time.Time
}

// SetoffDocumentRepository persists setoff documents with their children
type SetoffDocumentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SetoffDocument, error)
	// FindByIDForUpdate loads the document and locks its header row
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*SetoffDocument, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter DocumentFilter) ([]*SetoffDocument, int64, error)
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	ExistsByID(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	// Create inserts the header, payments and details
	Create(ctx context.Context, doc *SetoffDocument) error
	// UpdateStatus writes status fields guarded by the version check
	UpdateStatus(ctx context.Context, doc *SetoffDocument) error
}

// SourceLineRepository stores the registered source lines and derives their
// cumulative settlement from active setoff details.
type SourceLineRepository interface {
	FindByRef(ctx context.Context, tenantID uuid.UUID, ref SourceRef) (*SourceLine, error)
	// FindByRefsForUpdate locks the lines in the order given. A missing line
	// is a NotFoundError.
	FindByRefsForUpdate(ctx context.Context, tenantID uuid.UUID, refs []SourceRef) ([]*SourceLine, error)
	FindOpenByParty(ctx context.Context, tenantID, partyID uuid.UUID, direction Direction, page shared.PageRequest) ([]*SourceLine, int64, error)
	Create(ctx context.Context, line *SourceLine) error
	SaveWithLock(ctx context.Context, line *SourceLine) error
	// ActiveTotals sums details of ACTIVE documents per line, keyed by SourceKey.
	// excludeDocumentID, when set, leaves that document out.
	ActiveTotals(ctx context.Context, tenantID uuid.UUID, refs []SourceRef, excludeDocumentID *uuid.UUID) (map[string]LineTotals, error)
}

// PrepaymentRepository persists prepayment credit
type PrepaymentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SetoffPrepayment, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*SetoffPrepayment, error)
	FindByParty(ctx context.Context, tenantID, partyID uuid.UUID, onlyAvailable bool) ([]*SetoffPrepayment, error)
	FindByOriginDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]*SetoffPrepayment, error)
	Create(ctx context.Context, p *SetoffPrepayment) error
	SaveWithLock(ctx context.Context, p *SetoffPrepayment) error
}

// PrepaymentUsageRepository persists prepayment usages
type PrepaymentUsageRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SetoffPrepaymentUsage, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*SetoffPrepaymentUsage, error)
	FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]*SetoffPrepaymentUsage, error)
	FindByPrepayment(ctx context.Context, tenantID, prepaymentID uuid.UUID) ([]*SetoffPrepaymentUsage, error)
	Create(ctx context.Context, u *SetoffPrepaymentUsage) error
	// MarkReversed flips the reversed flag only if it is still unset.
	// Losing that race is an AlreadyReversedError.
	MarkReversed(ctx context.Context, u *SetoffPrepaymentUsage) error
}

// EntryFilter narrows an account statement
type EntryFilter struct {
	shared.PageRequest
	From *time.Time
	To   *time.Time
}

// FinancialTransactionRepository persists ledger entries
type FinancialTransactionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FinancialTransaction, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*FinancialTransaction, error)
	FindBySource(ctx context.Context, tenantID uuid.UUID, source DocumentRef) ([]*FinancialTransaction, error)
	// FindByAccount returns entries in sequence order
	FindByAccount(ctx context.Context, tenantID uuid.UUID, account AccountRef, filter EntryFilter) ([]*FinancialTransaction, int64, error)
	Create(ctx context.Context, tx *FinancialTransaction) error
	// MarkReversed sets reversed_by_id only if it is still empty.
	// Losing that race is an AlreadyReversedError.
	MarkReversed(ctx context.Context, tx *FinancialTransaction) error
}

// AccountBalanceRepository persists account chain heads
type AccountBalanceRepository interface {
	// Find returns the head, or an empty head when the account has no entries
	Find(ctx context.Context, tenantID uuid.UUID, account AccountRef) (*AccountBalance, error)
	// FindForUpdate locks the head row, creating it first if needed
	FindForUpdate(ctx context.Context, tenantID uuid.UUID, account AccountRef) (*AccountBalance, error)
	// SaveWithLock writes the head guarded by its version
	SaveWithLock(ctx context.Context, b *AccountBalance) error
}
