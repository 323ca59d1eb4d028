package finance

import (
	"time"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateSetoffDocumentRequest submits a reconciliation. The allocation is
// chosen by the caller; the engine only validates and persists it.
type CreateSetoffDocumentRequest struct {
	Code             string                 `json:"code" binding:"omitempty,max=50"`
	Direction        string                 `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	DocumentDate     time.Time              `json:"document_date" binding:"required"`
	CompanyID        uuid.UUID              `json:"company_id" binding:"required"`
	PartyID          uuid.UUID              `json:"party_id" binding:"required"`
	Remark           string                 `json:"remark" binding:"max=500"`
	Payments         []PaymentLineRequest   `json:"payments" binding:"dive"`
	Details          []AllocationRequest    `json:"details" binding:"dive"`
	PrepaymentUsages []UsageLineRequest     `json:"prepayment_usages" binding:"dive"`
	NewPrepayments   []NewPrepaymentRequest `json:"new_prepayments" binding:"dive"`
}

// PaymentLineRequest is a cash or bank line. Amount is in functional
// currency; a foreign payment also carries the original amount and rate.
type PaymentLineRequest struct {
	Amount        decimal.Decimal  `json:"amount" binding:"decimal_gte0"`
	Allowance     decimal.Decimal  `json:"allowance" binding:"decimal_gte0"`
	BankAccountID *uuid.UUID       `json:"bank_account_id"`
	PaymentMethod string           `json:"payment_method" binding:"max=50"`
	Currency      string           `json:"currency" binding:"omitempty,len=3"`
	ForeignAmount *decimal.Decimal `json:"foreign_amount"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate"`
}

// AllocationRequest settles one source line
type AllocationRequest struct {
	SourceKind string          `json:"source_kind" binding:"required"`
	SourceID   uuid.UUID       `json:"source_id" binding:"required"`
	Settled    decimal.Decimal `json:"settled" binding:"decimal_gte0"`
	Allowance  decimal.Decimal `json:"allowance" binding:"decimal_gte0"`
}

// UsageLineRequest draws on an existing prepayment
type UsageLineRequest struct {
	PrepaymentID uuid.UUID       `json:"prepayment_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"decimal_gt0"`
}

// NewPrepaymentRequest turns part of the document's funds into credit
type NewPrepaymentRequest struct {
	Amount     decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	SourceCode string          `json:"source_code" binding:"max=50"`
}

// VoidSetoffDocumentRequest carries the optional reason
type VoidSetoffDocumentRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SetoffDocumentListFilter narrows a document listing
type SetoffDocumentListFilter struct {
	PartyID   *uuid.UUID `form:"party_id"`
	Direction string     `form:"direction" binding:"omitempty,oneof=RECEIVABLE PAYABLE"`
	Status    string     `form:"status" binding:"omitempty,oneof=ACTIVE VOIDED"`
	DateFrom  *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo    *time.Time `form:"date_to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SetoffDocumentResponse is a document with its children
type SetoffDocumentResponse struct {
	ID                 uuid.UUID                 `json:"id"`
	TenantID           uuid.UUID                 `json:"tenant_id"`
	Code               string                    `json:"code"`
	Direction          string                    `json:"direction"`
	DocumentDate       time.Time                 `json:"document_date"`
	CompanyID          uuid.UUID                 `json:"company_id"`
	PartyID            uuid.UUID                 `json:"party_id"`
	TotalAmount        decimal.Decimal           `json:"total_amount"`
	Status             string                    `json:"status"`
	Remark             string                    `json:"remark,omitempty"`
	VoidedAt           *time.Time                `json:"voided_at,omitempty"`
	VoidReason         string                    `json:"void_reason,omitempty"`
	Payments           []PaymentLineResponse     `json:"payments"`
	Details            []DetailResponse          `json:"details"`
	PrepaymentUsages   []PrepaymentUsageResponse `json:"prepayment_usages"`
	CreatedPrepayments []PrepaymentResponse      `json:"created_prepayments"`
	Version            int                       `json:"version"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// PaymentLineResponse is a stored payment line
type PaymentLineResponse struct {
	ID            uuid.UUID        `json:"id"`
	Amount        decimal.Decimal  `json:"amount"`
	Allowance     decimal.Decimal  `json:"allowance"`
	BankAccountID *uuid.UUID       `json:"bank_account_id,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	ForeignAmount *decimal.Decimal `json:"foreign_amount,omitempty"`
	ExchangeRate  *decimal.Decimal `json:"exchange_rate,omitempty"`
}

// DetailResponse is a stored allocation with its lifetime snapshot
type DetailResponse struct {
	ID               uuid.UUID       `json:"id"`
	SourceKind       string          `json:"source_kind"`
	SourceID         uuid.UUID       `json:"source_id"`
	CurrentSettled   decimal.Decimal `json:"current_settled"`
	CurrentAllowance decimal.Decimal `json:"current_allowance"`
	TotalSettled     decimal.Decimal `json:"total_settled"`
	TotalAllowance   decimal.Decimal `json:"total_allowance"`
}

// CreatePrepaymentRequest opens standing credit for a party
type CreatePrepaymentRequest struct {
	PartyID    uuid.UUID       `json:"party_id" binding:"required"`
	Direction  string          `json:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	Amount     decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	SourceCode string          `json:"source_code" binding:"required,max=50"`
}

// ApplyUsageRequest draws credit for a document
type ApplyUsageRequest struct {
	DocumentID uuid.UUID       `json:"document_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"decimal_gt0"`
}

// PrepaymentListFilter narrows a prepayment listing
type PrepaymentListFilter struct {
	PartyID       uuid.UUID `form:"party_id" binding:"required"`
	OnlyAvailable bool      `form:"only_available"`
}

// PrepaymentResponse is a credit record
type PrepaymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	PartyID          uuid.UUID       `json:"party_id"`
	Direction        string          `json:"direction"`
	Amount           decimal.Decimal `json:"amount"`
	UsedAmount       decimal.Decimal `json:"used_amount"`
	Available        decimal.Decimal `json:"available"`
	SourceCode       string          `json:"source_code"`
	OriginDocumentID *uuid.UUID      `json:"origin_document_id,omitempty"`
	Status           string          `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PrepaymentUsageResponse is a usage record
type PrepaymentUsageResponse struct {
	ID           uuid.UUID       `json:"id"`
	PrepaymentID uuid.UUID       `json:"prepayment_id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reversed     bool            `json:"reversed"`
	ReversedAt   *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PrepaymentCheckResponse reports whether used amount equals the usage sum
type PrepaymentCheckResponse struct {
	PrepaymentID uuid.UUID       `json:"prepayment_id"`
	UsedAmount   decimal.Decimal `json:"used_amount"`
	UsageTotal   decimal.Decimal `json:"usage_total"`
	Consistent   bool            `json:"consistent"`
}

// RecordEntryRequest posts a manual entry to an account
type RecordEntryRequest struct {
	AccountKind     string           `json:"account_kind" binding:"required,oneof=COMPANY_CASH BANK PARTY"`
	AccountID       uuid.UUID        `json:"account_id" binding:"required"`
	Amount          decimal.Decimal  `json:"amount" binding:"required"`
	Type            string           `json:"type" binding:"required,oneof=SETOFF_RECEIPT SETOFF_PAYMENT ADJUSTMENT"`
	TransactionDate time.Time        `json:"transaction_date"`
	SourceType      string           `json:"source_type" binding:"required,max=50"`
	SourceID        uuid.UUID        `json:"source_id" binding:"required"`
	Currency        string           `json:"currency" binding:"omitempty,len=3"`
	ForeignAmount   *decimal.Decimal `json:"foreign_amount"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate"`
	Remark          string           `json:"remark" binding:"max=500"`
}

// EntryListFilter narrows an account statement
type EntryListFilter struct {
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// LedgerEntryResponse is one ledger row
type LedgerEntryResponse struct {
	ID              uuid.UUID        `json:"id"`
	AccountKind     string           `json:"account_kind"`
	AccountID       uuid.UUID        `json:"account_id"`
	Sequence        int64            `json:"sequence"`
	Amount          decimal.Decimal  `json:"amount"`
	BalanceBefore   decimal.Decimal  `json:"balance_before"`
	BalanceAfter    decimal.Decimal  `json:"balance_after"`
	Type            string           `json:"type"`
	TransactionDate time.Time        `json:"transaction_date"`
	SourceType      string           `json:"source_type"`
	SourceID        uuid.UUID        `json:"source_id"`
	Currency        string           `json:"currency,omitempty"`
	ForeignAmount   *decimal.Decimal `json:"foreign_amount,omitempty"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate,omitempty"`
	ReversalOfID    *uuid.UUID       `json:"reversal_of_id,omitempty"`
	ReversedByID    *uuid.UUID       `json:"reversed_by_id,omitempty"`
	Remark          string           `json:"remark,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// AccountBalanceResponse is the running balance of an account
type AccountBalanceResponse struct {
	AccountKind string          `json:"account_kind"`
	AccountID   uuid.UUID       `json:"account_id"`
	Balance     decimal.Decimal `json:"balance"`
	Sequence    int64           `json:"sequence"`
}

// ReversalPairResponse shows an entry next to the entry that reversed it
type ReversalPairResponse struct {
	Original LedgerEntryResponse `json:"original"`
	Reversal LedgerEntryResponse `json:"reversal"`
	Net      decimal.Decimal     `json:"net"`
}

// ChainCheckResponse is the result of replaying an account's entries
type ChainCheckResponse struct {
	AccountKind string          `json:"account_kind"`
	AccountID   uuid.UUID       `json:"account_id"`
	Entries     int             `json:"entries"`
	Balance     decimal.Decimal `json:"balance"`
	Intact      bool            `json:"intact"`
	BreakAt     *int64          `json:"break_at,omitempty"`
	BreakID     *uuid.UUID      `json:"break_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// RegisterSourceLineRequest announces an outstanding line owned by another
// module, or raises its original amount
type RegisterSourceLineRequest struct {
	SourceKind     string          `json:"source_kind" binding:"required"`
	SourceID       uuid.UUID       `json:"source_id" binding:"required"`
	PartyID        uuid.UUID       `json:"party_id" binding:"required"`
	OriginalAmount decimal.Decimal `json:"original_amount" binding:"decimal_gt0"`
}

// OutstandingListFilter selects open lines of a party
type OutstandingListFilter struct {
	PartyID   uuid.UUID `form:"party_id" binding:"required"`
	Direction string    `form:"direction" binding:"required,oneof=RECEIVABLE PAYABLE"`
	Page      int       `form:"page" binding:"omitempty,min=1"`
	PageSize  int       `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SourceLineResponse is the settlement view of a source line
type SourceLineResponse struct {
	SourceKind     string          `json:"source_kind"`
	SourceID       uuid.UUID       `json:"source_id"`
	PartyID        uuid.UUID       `json:"party_id"`
	Direction      string          `json:"direction"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	SettledTotal   decimal.Decimal `json:"settled_total"`
	AllowanceTotal decimal.Decimal `json:"allowance_total"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Version        int             `json:"version"`
}

// TaxLineRequest is one line for the tax calculator
type TaxLineRequest struct {
	Subtotal decimal.Decimal  `json:"subtotal"`
	Rate     *decimal.Decimal `json:"rate"`
}

// CalculateTaxRequest asks for untaxed total and tax under a mode
type CalculateTaxRequest struct {
	Lines       []TaxLineRequest `json:"lines" binding:"dive"`
	DefaultRate decimal.Decimal  `json:"default_rate" binding:"decimal_gte0"`
	Mode        string           `json:"mode" binding:"required,oneof=EXCLUSIVE INCLUSIVE NONE"`
}

// TaxLineResponse is the tax computed for one line
type TaxLineResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Rate     decimal.Decimal `json:"rate"`
	Tax      decimal.Decimal `json:"tax"`
}

// CalculateTaxResponse is the calculator output
type CalculateTaxResponse struct {
	Mode    string            `json:"mode"`
	Untaxed decimal.Decimal   `json:"untaxed"`
	Tax     decimal.Decimal   `json:"tax"`
	Total   decimal.Decimal   `json:"total"`
	Lines   []TaxLineResponse `json:"lines"`
}

// ExportStatementRequest selects the period of a statement export
type ExportStatementRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// StatementExportResponse points at the uploaded statement
type StatementExportResponse struct {
	Key     string `json:"key"`
	Entries int    `json:"entries"`
	Bytes   int    `json:"bytes"`
}

// ToSetoffDocumentResponse converts a domain document
func ToSetoffDocumentResponse(d *finance.SetoffDocument) SetoffDocumentResponse {
	resp := SetoffDocumentResponse{
		ID:                 d.ID,
		TenantID:           d.TenantID,
		Code:               d.Code,
		Direction:          string(d.Direction),
		DocumentDate:       d.DocumentDate,
		CompanyID:          d.CompanyID,
		PartyID:            d.PartyID,
		TotalAmount:        d.TotalAmount,
		Status:             string(d.Status),
		Remark:             d.Remark,
		VoidedAt:           d.VoidedAt,
		VoidReason:         d.VoidReason,
		Payments:           make([]PaymentLineResponse, 0, len(d.Payments)),
		Details:            make([]DetailResponse, 0, len(d.Details)),
		PrepaymentUsages:   make([]PrepaymentUsageResponse, 0, len(d.Usages)),
		CreatedPrepayments: make([]PrepaymentResponse, 0, len(d.CreatedPrepayments)),
		Version:            d.Version,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	for _, p := range d.Payments {
		line := PaymentLineResponse{
			ID:            p.ID,
			Amount:        p.Amount,
			Allowance:     p.Allowance,
			BankAccountID: p.BankAccountID,
			PaymentMethod: p.PaymentMethod,
		}
		line.Currency, line.ForeignAmount, line.ExchangeRate = foreignFields(p.Foreign)
		resp.Payments = append(resp.Payments, line)
	}
	for _, det := range d.Details {
		resp.Details = append(resp.Details, DetailResponse{
			ID:               det.ID,
			SourceKind:       string(det.Source.Kind()),
			SourceID:         det.Source.LineID(),
			CurrentSettled:   det.CurrentSettled,
			CurrentAllowance: det.CurrentAllowance,
			TotalSettled:     det.TotalSettled,
			TotalAllowance:   det.TotalAllowance,
		})
	}
	for _, u := range d.Usages {
		resp.PrepaymentUsages = append(resp.PrepaymentUsages, ToPrepaymentUsageResponse(u))
	}
	for _, p := range d.CreatedPrepayments {
		resp.CreatedPrepayments = append(resp.CreatedPrepayments, ToPrepaymentResponse(p))
	}
	return resp
}

// ToPrepaymentResponse converts a domain prepayment
func ToPrepaymentResponse(p *finance.SetoffPrepayment) PrepaymentResponse {
	return PrepaymentResponse{
		ID:               p.ID,
		PartyID:          p.PartyID,
		Direction:        string(p.Direction),
		Amount:           p.Amount,
		UsedAmount:       p.UsedAmount,
		Available:        p.Available(),
		SourceCode:       p.SourceCode,
		OriginDocumentID: p.OriginDocumentID,
		Status:           string(p.Status),
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
	}
}

// ToPrepaymentUsageResponse converts a domain usage
func ToPrepaymentUsageResponse(u *finance.SetoffPrepaymentUsage) PrepaymentUsageResponse {
	return PrepaymentUsageResponse{
		ID:           u.ID,
		PrepaymentID: u.PrepaymentID,
		DocumentID:   u.DocumentID,
		Amount:       u.Amount,
		Reversed:     u.Reversed,
		ReversedAt:   u.ReversedAt,
		CreatedAt:    u.CreatedAt,
	}
}

// ToLedgerEntryResponse converts a ledger entry
func ToLedgerEntryResponse(t *finance.FinancialTransaction) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:              t.ID,
		AccountKind:     string(t.Account.Kind),
		AccountID:       t.Account.ID,
		Sequence:        t.Sequence,
		Amount:          t.Amount,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		Type:            string(t.Type),
		TransactionDate: t.TransactionDate,
		SourceType:      t.Source.Type,
		SourceID:        t.Source.ID,
		ReversalOfID:    t.ReversalOfID,
		ReversedByID:    t.ReversedByID,
		Remark:          t.Remark,
		CreatedAt:       t.CreatedAt,
	}
	resp.Currency, resp.ForeignAmount, resp.ExchangeRate = foreignFields(t.Foreign)
	return resp
}

func toSourceLineResponse(l *finance.SourceLine, totals finance.LineTotals) SourceLineResponse {
	return SourceLineResponse{
		SourceKind:     string(l.Ref.Kind()),
		SourceID:       l.Ref.LineID(),
		PartyID:        l.PartyID,
		Direction:      string(l.Direction()),
		OriginalAmount: l.OriginalAmount,
		SettledTotal:   totals.Settled,
		AllowanceTotal: totals.Allowance,
		Outstanding:    l.Outstanding(totals),
		Version:        l.Version,
	}
}

func foreignFields(f *valueobject.ForeignAmount) (string, *decimal.Decimal, *decimal.Decimal) {
	if f == nil {
		return "", nil, nil
	}
	amount, rate := f.Amount, f.ExchangeRate
	return f.Currency.String(), &amount, &rate
}

// parseForeign builds the original-currency part of a payment or entry.
// All three fields are required together.
func parseForeign(currency string, amount, rate *decimal.Decimal) (*valueobject.ForeignAmount, error) {
	if currency == "" && amount == nil && rate == nil {
		return nil, nil
	}
	if currency == "" || amount == nil || rate == nil {
		return nil, shared.NewValidationError("currency", "currency, foreign amount and exchange rate must be given together")
	}
	f, err := valueobject.NewForeignAmount(currency, *amount, *rate)
	if err != nil {
		return nil, shared.NewValidationError("currency", err.Error())
	}
	return &f, nil
}
