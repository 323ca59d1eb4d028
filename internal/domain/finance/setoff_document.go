package finance

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentStatus represents the status of a setoff document
type DocumentStatus string

const (
	DocumentStatusActive DocumentStatus = "ACTIVE"
	DocumentStatusVoided DocumentStatus = "VOIDED"
)

// IsValid checks if the status is known
func (s DocumentStatus) IsValid() bool {
	return s == DocumentStatusActive || s == DocumentStatusVoided
}

// SetoffPayment is a cash or bank line of a setoff document. Amount is in
// the functional currency; Foreign keeps the original when the payment was
// made in another currency.
type SetoffPayment struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	Amount        decimal.Decimal
	Allowance     decimal.Decimal
	BankAccountID *uuid.UUID
	PaymentMethod string
	Foreign       *valueobject.ForeignAmount
}

// SetoffProductDetail allocates part of a document's funds to one source line.
// TotalSettled and TotalAllowance are the line's lifetime totals including
// this detail, captured at commit time.
type SetoffProductDetail struct {
	ID               uuid.UUID
	DocumentID       uuid.UUID
	Source           SourceRef
	CurrentSettled   decimal.Decimal
	CurrentAllowance decimal.Decimal
	TotalSettled     decimal.Decimal
	TotalAllowance   decimal.Decimal
}

// SetoffDocument settles outstanding source lines with payments, allowances
// and prepayment credit. It is append-only: once committed it can only be
// voided.
type SetoffDocument struct {
	shared.TenantAggregateRoot
	Code               string
	Direction          Direction
	DocumentDate       time.Time
	CompanyID          uuid.UUID
	PartyID            uuid.UUID
	TotalAmount        decimal.Decimal
	Status             DocumentStatus
	Remark             string
	VoidedAt           *time.Time
	VoidReason         string
	Payments           []SetoffPayment
	Details            []SetoffProductDetail
	Usages             []*SetoffPrepaymentUsage
	CreatedPrepayments []*SetoffPrepayment
}

// NewSetoffDocument creates an empty document header
func NewSetoffDocument(
	tenantID uuid.UUID,
	code string,
	direction Direction,
	documentDate time.Time,
	companyID, partyID uuid.UUID,
	remark string,
) (*SetoffDocument, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("code", "document code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("code", "document code cannot exceed 50 characters")
	}
	if !direction.IsValid() {
		return nil, shared.NewValidationError("direction", "direction must be RECEIVABLE or PAYABLE")
	}
	if documentDate.IsZero() {
		return nil, shared.NewValidationError("document_date", "document date is required")
	}
	if companyID == uuid.Nil {
		return nil, shared.NewValidationError("company_id", "company is required")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewValidationError("party_id", "party is required")
	}

	return &SetoffDocument{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Direction:           direction,
		DocumentDate:        documentDate,
		CompanyID:           companyID,
		PartyID:             partyID,
		TotalAmount:         decimal.Zero,
		Status:              DocumentStatusActive,
		Remark:              remark,
	}, nil
}

// PaymentInput describes a payment line to add
type PaymentInput struct {
	Amount        decimal.Decimal
	Allowance     decimal.Decimal
	BankAccountID *uuid.UUID
	PaymentMethod string
	Foreign       *valueobject.ForeignAmount
}

// AddPayment appends a payment line
func (d *SetoffDocument) AddPayment(in PaymentInput) error {
	field := fmt.Sprintf("payments[%d]", len(d.Payments))
	amount := in.Amount
	if in.Foreign != nil {
		functional := in.Foreign.Functional()
		if !amount.IsZero() && !amount.Equal(functional) {
			return shared.NewValidationError(field+".amount",
				fmt.Sprintf("amount %s does not match converted foreign amount %s", amount.StringFixed(2), functional.StringFixed(2)))
		}
		amount = functional
	}
	if err := checkMoney(field+".amount", amount); err != nil {
		return err
	}
	if err := checkMoney(field+".allowance", in.Allowance); err != nil {
		return err
	}
	if amount.IsZero() && in.Allowance.IsZero() {
		return shared.NewValidationError(field, "payment must carry an amount or an allowance")
	}
	if in.BankAccountID != nil && *in.BankAccountID == uuid.Nil {
		return shared.NewValidationError(field+".bank_account_id", "bank account id is invalid")
	}

	d.Payments = append(d.Payments, SetoffPayment{
		ID:            uuid.New(),
		DocumentID:    d.ID,
		Amount:        amount,
		Allowance:     in.Allowance,
		BankAccountID: in.BankAccountID,
		PaymentMethod: in.PaymentMethod,
		Foreign:       in.Foreign,
	})
	return nil
}

// AddDetail allocates settled and allowance amounts to a source line
func (d *SetoffDocument) AddDetail(ref SourceRef, settled, allowance decimal.Decimal) error {
	field := fmt.Sprintf("details[%d]", len(d.Details))
	if ref == nil {
		return shared.NewValidationError(field+".source", "source reference is required")
	}
	if SourceDirection(ref) != d.Direction {
		return shared.NewValidationError(field+".source",
			fmt.Sprintf("%s lines cannot be settled by a %s document", ref.Kind(), d.Direction))
	}
	if err := checkMoney(field+".current_settled", settled); err != nil {
		return err
	}
	if err := checkMoney(field+".current_allowance", allowance); err != nil {
		return err
	}
	if settled.IsZero() && allowance.IsZero() {
		return shared.NewValidationError(field, "allocation cannot be zero")
	}
	for _, existing := range d.Details {
		if CompareSourceRefs(existing.Source, ref) == 0 {
			return shared.NewValidationError(field+".source", "source line "+SourceKey(ref)+" is allocated twice")
		}
	}

	d.Details = append(d.Details, SetoffProductDetail{
		ID:               uuid.New(),
		DocumentID:       d.ID,
		Source:           ref,
		CurrentSettled:   settled,
		CurrentAllowance: allowance,
	})
	return nil
}

// AddUsage plans a draw on a prepayment. The credit itself is taken by the
// engine under a lock on the prepayment.
func (d *SetoffDocument) AddUsage(prepaymentID uuid.UUID, amount decimal.Decimal) error {
	field := fmt.Sprintf("prepayment_usages[%d]", len(d.Usages))
	if err := checkMoney(field+".amount", amount); err != nil {
		return err
	}
	for _, u := range d.Usages {
		if u.PrepaymentID == prepaymentID {
			return shared.NewValidationError(field+".prepayment_id", "prepayment "+prepaymentID.String()+" is used twice")
		}
	}
	usage, err := NewSetoffPrepaymentUsage(d.TenantID, prepaymentID, d.ID, amount)
	if err != nil {
		return err
	}
	d.Usages = append(d.Usages, usage)
	return nil
}

// AddPrepayment turns part of the document's funds into new credit for the party
func (d *SetoffDocument) AddPrepayment(amount decimal.Decimal, sourceCode string) (*SetoffPrepayment, error) {
	if sourceCode == "" {
		sourceCode = d.Code
	}
	docID := d.ID
	p, err := NewSetoffPrepayment(d.TenantID, d.PartyID, d.Direction, amount, sourceCode, &docID)
	if err != nil {
		return nil, err
	}
	d.CreatedPrepayments = append(d.CreatedPrepayments, p)
	return p, nil
}

// CashFunds is what the document brings in: payments plus prepayment credit used
func (d *SetoffDocument) CashFunds() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		total = total.Add(p.Amount)
	}
	for _, u := range d.Usages {
		total = total.Add(u.Amount)
	}
	return total
}

// CashAllocated is what the document spends: signed settlements plus new prepayments
func (d *SetoffDocument) CashAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, det := range d.Details {
		total = total.Add(SourceSign(det.Source).Mul(det.CurrentSettled))
	}
	for _, p := range d.CreatedPrepayments {
		total = total.Add(p.Amount)
	}
	return total
}

// AllowanceFunds sums the allowances granted on payment lines
func (d *SetoffDocument) AllowanceFunds() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		total = total.Add(p.Allowance)
	}
	return total
}

// AllowanceAllocated sums the signed allowances applied to source lines
func (d *SetoffDocument) AllowanceAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, det := range d.Details {
		total = total.Add(SourceSign(det.Source).Mul(det.CurrentAllowance))
	}
	return total
}

// CheckBalance enforces the document equation:
//
//	payments + prepayment usages == signed settlements + created prepayments
//	payment allowances          == signed line allowances
func (d *SetoffDocument) CheckBalance() error {
	if funds, allocated := d.CashFunds(), d.CashAllocated(); !funds.Equal(allocated) {
		return &UnbalancedDocumentError{Side: BalanceSideCash, Funds: funds, Allocated: allocated}
	}
	if funds, allocated := d.AllowanceFunds(), d.AllowanceAllocated(); !funds.Equal(allocated) {
		return &UnbalancedDocumentError{Side: BalanceSideAllowance, Funds: funds, Allocated: allocated}
	}
	return nil
}

// Seal validates the assembled document. It must be called once, after all
// lines were added and before anything is persisted.
func (d *SetoffDocument) Seal() error {
	if len(d.Details) == 0 && len(d.CreatedPrepayments) == 0 {
		return shared.NewValidationError("details", "document must allocate to at least one source line or prepayment")
	}
	if err := d.CheckBalance(); err != nil {
		return err
	}
	d.TotalAmount = d.CashFunds()
	return nil
}

// Commit captures the lifetime totals of each line after this document and
// records the created event. prior holds the totals from other active
// documents, keyed by SourceKey.
func (d *SetoffDocument) Commit(prior map[string]LineTotals) {
	for i := range d.Details {
		det := &d.Details[i]
		before, ok := prior[SourceKey(det.Source)]
		if !ok {
			before = ZeroLineTotals()
		}
		after := before.Add(det.CurrentSettled, det.CurrentAllowance)
		det.TotalSettled = after.Settled
		det.TotalAllowance = after.Allowance
	}
	evt := NewSetoffDocumentCreatedEvent(d)
	evt.CaptureDetails(d)
	d.AddDomainEvent(evt)
}

// SourceRefs returns the referenced source lines in lock order
func (d *SetoffDocument) SourceRefs() []SourceRef {
	refs := make([]SourceRef, 0, len(d.Details))
	for _, det := range d.Details {
		refs = append(refs, det.Source)
	}
	return SortedSourceRefs(refs)
}

// PaymentAccount is the ledger account a payment line posts to
func (d *SetoffDocument) PaymentAccount(p SetoffPayment) AccountRef {
	if p.BankAccountID != nil {
		return AccountRef{Kind: AccountKindBank, ID: *p.BankAccountID}
	}
	return AccountRef{Kind: AccountKindCompanyCash, ID: d.CompanyID}
}

// LedgerPostings returns one posting per payment that moved money, ordered
// by account so balance heads are always locked in the same order. Receipts
// increase the account balance, disbursements decrease it.
func (d *SetoffDocument) LedgerPostings() []PostingRequest {
	txType := TransactionTypeSetoffReceipt
	if d.Direction == DirectionPayable {
		txType = TransactionTypeSetoffPayment
	}
	sign := d.Direction.LedgerSign()

	postings := make([]PostingRequest, 0, len(d.Payments))
	for _, p := range d.Payments {
		if p.Amount.IsZero() {
			continue
		}
		req := PostingRequest{
			Account:         d.PaymentAccount(p),
			Amount:          p.Amount.Mul(sign),
			Type:            txType,
			TransactionDate: d.DocumentDate,
			Source:          DocumentRef{Type: DocumentTypeSetoff, ID: d.ID},
			Remark:          d.Code,
		}
		if p.Foreign != nil {
			f := *p.Foreign
			if sign.IsNegative() {
				f = f.Negate()
			}
			req.Foreign = &f
		}
		postings = append(postings, req)
	}
	slices.SortStableFunc(postings, func(a, b PostingRequest) int {
		return strings.Compare(a.Account.String(), b.Account.String())
	})
	return postings
}

// Void marks the document voided. Compensating ledger, usage and
// prepayment effects are applied by the engine in the same transaction.
func (d *SetoffDocument) Void(reason string) error {
	if d.Status == DocumentStatusVoided {
		return shared.NewInvalidStateError("setoff document %s is already voided", d.Code)
	}
	if len(reason) > 500 {
		return shared.NewValidationError("reason", "void reason cannot exceed 500 characters")
	}
	now := time.Now()
	d.Status = DocumentStatusVoided
	d.VoidedAt = &now
	d.VoidReason = reason
	d.IncrementVersion()
	d.AddDomainEvent(NewSetoffDocumentVoidedEvent(d))
	return nil
}

func checkMoney(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return shared.NewValidationError(field, "amount cannot be negative")
	}
	if !v.Equal(valueobject.RoundCurrency(v)) {
		return shared.NewValidationError(field, "amount allows at most two decimal places")
	}
	return nil
}
