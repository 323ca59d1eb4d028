package finance

import (
	"fmt"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverSettlementError is returned when an allocation exceeds what is still
// outstanding on a source line.
type OverSettlementError struct {
	Line        SourceRef
	Requested   decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverSettlementError) Error() string {
	return fmt.Sprintf("allocation %s on %s exceeds outstanding %s",
		e.Requested.StringFixed(2), SourceKey(e.Line), e.Outstanding.StringFixed(2))
}

func (e *OverSettlementError) Unwrap() error { return shared.ErrOverSettlement }

// BalanceSide names which half of the document equation failed
type BalanceSide string

const (
	BalanceSideCash      BalanceSide = "CASH"
	BalanceSideAllowance BalanceSide = "ALLOWANCE"
)

// UnbalancedDocumentError is returned when a document's funds differ from
// what it allocates.
type UnbalancedDocumentError struct {
	Side      BalanceSide
	Funds     decimal.Decimal
	Allocated decimal.Decimal
}

func (e *UnbalancedDocumentError) Error() string {
	return fmt.Sprintf("%s funds %s do not match allocated %s",
		e.Side, e.Funds.StringFixed(2), e.Allocated.StringFixed(2))
}

func (e *UnbalancedDocumentError) Unwrap() error { return shared.ErrUnbalancedDocument }

// InsufficientCreditError is returned when a prepayment cannot cover a usage
type InsufficientCreditError struct {
	PrepaymentID uuid.UUID
	Requested    decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("prepayment %s has %s available, %s requested",
		e.PrepaymentID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientCreditError) Unwrap() error { return shared.ErrInsufficientCredit }

// AlreadyReversedError is returned when a ledger entry or prepayment usage
// has already been reversed.
type AlreadyReversedError struct {
	Resource string
	ID       uuid.UUID
}

func (e *AlreadyReversedError) Error() string {
	return fmt.Sprintf("%s %s has already been reversed", e.Resource, e.ID)
}

func (e *AlreadyReversedError) Unwrap() error { return shared.ErrAlreadyReversed }
