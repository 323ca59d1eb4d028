package finance

import (
	"fmt"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind identifies what a ledger account belongs to
type AccountKind string

const (
	AccountKindCompanyCash AccountKind = "COMPANY_CASH"
	AccountKindBank        AccountKind = "BANK"
	AccountKindParty       AccountKind = "PARTY"
)

// IsValid checks if the kind is known
func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindCompanyCash, AccountKindBank, AccountKindParty:
		return true
	}
	return false
}

// AccountRef identifies one balance chain
type AccountRef struct {
	Kind AccountKind
	ID   uuid.UUID
}

// ParseAccountRef parses the wire form of an account reference
func ParseAccountRef(kind, id string) (AccountRef, error) {
	ref := AccountRef{Kind: AccountKind(kind)}
	if !ref.Kind.IsValid() {
		return AccountRef{}, shared.NewValidationError("account_kind", fmt.Sprintf("unknown account kind %q", kind))
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed == uuid.Nil {
		return AccountRef{}, shared.NewValidationError("account_id", "account id must be a UUID")
	}
	ref.ID = parsed
	return ref, nil
}

func (a AccountRef) String() string {
	return string(a.Kind) + ":" + a.ID.String()
}

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeSetoffReceipt TransactionType = "SETOFF_RECEIPT"
	TransactionTypeSetoffPayment TransactionType = "SETOFF_PAYMENT"
	TransactionTypeAdjustment    TransactionType = "ADJUSTMENT"
	TransactionTypeReversal      TransactionType = "REVERSAL"
)

// IsValid checks if the type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSetoffReceipt, TransactionTypeSetoffPayment, TransactionTypeAdjustment, TransactionTypeReversal:
		return true
	}
	return false
}

// DocumentRef points at the business document that caused a ledger entry
type DocumentRef struct {
	Type string
	ID   uuid.UUID
}

const DocumentTypeSetoff = "SETOFF_DOCUMENT"

// FinancialTransaction is an immutable ledger entry. The only mutation ever
// applied after creation is attaching ReversedByID.
type FinancialTransaction struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Account         AccountRef
	Sequence        int64
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	Type            TransactionType
	TransactionDate time.Time
	Source          DocumentRef
	Foreign         *valueobject.ForeignAmount
	ReversalOfID    *uuid.UUID
	ReversedByID    *uuid.UUID
	Remark          string
	CreatedAt       time.Time
}

// PostingRequest describes an entry to append to an account
type PostingRequest struct {
	Account         AccountRef
	Amount          decimal.Decimal
	Type            TransactionType
	TransactionDate time.Time
	Source          DocumentRef
	Foreign         *valueobject.ForeignAmount
	Remark          string
}

// Validate checks the request before any balance is read
func (r PostingRequest) Validate() error {
	if !r.Account.Kind.IsValid() || r.Account.ID == uuid.Nil {
		return shared.NewValidationError("account", "a valid account is required")
	}
	if !r.Type.IsValid() {
		return shared.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", r.Type))
	}
	if r.Type == TransactionTypeReversal {
		return shared.NewValidationError("type", "reversal entries are created by Reverse only")
	}
	if r.Amount.IsZero() {
		return shared.NewValidationError("amount", "amount cannot be zero")
	}
	if !r.Amount.Equal(valueobject.RoundCurrency(r.Amount)) {
		return shared.NewValidationError("amount", "amount allows at most two decimal places")
	}
	if r.Source.ID == uuid.Nil || r.Source.Type == "" {
		return shared.NewValidationError("source", "source document is required")
	}
	return nil
}

// AccountBalance is the head of an account's balance chain. Postings to one
// account are serialized through this row.
type AccountBalance struct {
	TenantID          uuid.UUID
	Account           AccountRef
	Balance           decimal.Decimal
	LastTransactionID *uuid.UUID
	Sequence          int64
	Version           int
	UpdatedAt         time.Time
}

// NewAccountBalance returns an empty chain head
func NewAccountBalance(tenantID uuid.UUID, account AccountRef) *AccountBalance {
	return &AccountBalance{
		TenantID:  tenantID,
		Account:   account,
		Balance:   decimal.Zero,
		Version:   1,
		UpdatedAt: time.Now(),
	}
}

// Post appends an entry to the chain and advances the head
func (b *AccountBalance) Post(req PostingRequest) *FinancialTransaction {
	tx := &FinancialTransaction{
		ID:              uuid.New(),
		TenantID:        b.TenantID,
		Account:         b.Account,
		Sequence:        b.Sequence + 1,
		Amount:          req.Amount,
		BalanceBefore:   b.Balance,
		BalanceAfter:    b.Balance.Add(req.Amount),
		Type:            req.Type,
		TransactionDate: req.TransactionDate,
		Source:          req.Source,
		Foreign:         req.Foreign,
		Remark:          req.Remark,
		CreatedAt:       time.Now(),
	}
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = tx.CreatedAt
	}
	b.Balance = tx.BalanceAfter
	b.Sequence = tx.Sequence
	b.LastTransactionID = &tx.ID
	b.Version++
	b.UpdatedAt = tx.CreatedAt
	return tx
}

// IsReversal reports whether this entry reverses another
func (t *FinancialTransaction) IsReversal() bool {
	return t.ReversalOfID != nil
}

// IsReversed reports whether this entry has been reversed
func (t *FinancialTransaction) IsReversed() bool {
	return t.ReversedByID != nil
}

// CanBeReversed enforces at most one reversal and no reversal of a reversal
func (t *FinancialTransaction) CanBeReversed() error {
	if t.IsReversed() {
		return &AlreadyReversedError{Resource: "financial transaction", ID: t.ID}
	}
	if t.IsReversal() {
		return shared.NewInvalidStateError("financial transaction %s is itself a reversal and cannot be reversed", t.ID)
	}
	return nil
}

// ReversalRequest builds the posting that cancels this entry
func (t *FinancialTransaction) ReversalRequest() (PostingRequest, error) {
	if err := t.CanBeReversed(); err != nil {
		return PostingRequest{}, err
	}
	req := PostingRequest{
		Account:         t.Account,
		Amount:          t.Amount.Neg(),
		Type:            TransactionTypeReversal,
		TransactionDate: time.Now(),
		Source:          t.Source,
		Remark:          "reversal of " + t.ID.String(),
	}
	if t.Foreign != nil {
		neg := t.Foreign.Negate()
		req.Foreign = &neg
	}
	return req, nil
}

// MarkReversedBy links this entry to its reversal
func (t *FinancialTransaction) MarkReversedBy(reversalID uuid.UUID) error {
	if err := t.CanBeReversed(); err != nil {
		return err
	}
	t.ReversedByID = &reversalID
	return nil
}

// ReversalPair is an original entry together with the entry that reversed it
type ReversalPair struct {
	Original *FinancialTransaction
	Reversal *FinancialTransaction
}

// NewReversalPair checks that the two entries really reference each other
func NewReversalPair(original, reversal *FinancialTransaction) (ReversalPair, error) {
	if original.ReversedByID == nil || *original.ReversedByID != reversal.ID ||
		reversal.ReversalOfID == nil || *reversal.ReversalOfID != original.ID {
		return ReversalPair{}, shared.NewInvalidStateError("transactions %s and %s are not a reversal pair", original.ID, reversal.ID)
	}
	return ReversalPair{Original: original, Reversal: reversal}, nil
}

// Net is the combined effect of the pair on the balance, always zero
func (p ReversalPair) Net() decimal.Decimal {
	return p.Original.Amount.Add(p.Reversal.Amount)
}

// ChainBreak describes the first inconsistency found when replaying an account
type ChainBreak struct {
	TransactionID uuid.UUID
	Sequence      int64
	Reason        string
}

// VerifyChain replays entries ordered by sequence and returns the first
// break, or nil when every entry links to the previous one.
func VerifyChain(entries []*FinancialTransaction) *ChainBreak {
	running := decimal.Zero
	var seq int64
	for _, e := range entries {
		switch {
		case e.Sequence != seq+1:
			return &ChainBreak{TransactionID: e.ID, Sequence: e.Sequence, Reason: fmt.Sprintf("expected sequence %d", seq+1)}
		case !e.BalanceBefore.Equal(running):
			return &ChainBreak{TransactionID: e.ID, Sequence: e.Sequence, Reason: "balance before does not match previous balance after"}
		case !e.BalanceAfter.Equal(e.BalanceBefore.Add(e.Amount)):
			return &ChainBreak{TransactionID: e.ID, Sequence: e.Sequence, Reason: "balance after is not balance before plus amount"}
		}
		running = e.BalanceAfter
		seq = e.Sequence
	}
	return nil
}
