package finance

import (
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceLine is the settlement view of a delivery, receiving or return line
// owned by another module. Only the original amount is stored; cumulative
// settlement is derived from active setoff details.
type SourceLine struct {
	shared.TenantAggregateRoot
	Ref            SourceRef
	PartyID        uuid.UUID
	OriginalAmount decimal.Decimal
}

// LineTotals is the lifetime settlement of a source line across active documents
type LineTotals struct {
	Settled   decimal.Decimal
	Allowance decimal.Decimal
}

// ZeroLineTotals returns totals for a line with no settlement yet
func ZeroLineTotals() LineTotals {
	return LineTotals{Settled: decimal.Zero, Allowance: decimal.Zero}
}

// Consumed returns settled plus allowance
func (t LineTotals) Consumed() decimal.Decimal {
	return t.Settled.Add(t.Allowance)
}

// Add returns the totals after applying one more allocation
func (t LineTotals) Add(settled, allowance decimal.Decimal) LineTotals {
	return LineTotals{
		Settled:   t.Settled.Add(settled),
		Allowance: t.Allowance.Add(allowance),
	}
}

// NewSourceLine registers a source line for settlement
func NewSourceLine(tenantID uuid.UUID, ref SourceRef, partyID uuid.UUID, originalAmount decimal.Decimal) (*SourceLine, error) {
	if ref == nil {
		return nil, shared.NewValidationError("source", "source reference is required")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewValidationError("party_id", "party is required")
	}
	if !originalAmount.IsPositive() {
		return nil, shared.NewValidationError("original_amount", "original amount must be positive")
	}
	if err := checkMoney("original_amount", originalAmount); err != nil {
		return nil, err
	}
	return &SourceLine{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Ref:                 ref,
		PartyID:             partyID,
		OriginalAmount:      originalAmount,
	}, nil
}

// Direction returns the setoff direction that can settle this line
func (l *SourceLine) Direction() Direction {
	return SourceDirection(l.Ref)
}

// Outstanding is the amount still open given the line's lifetime totals
func (l *SourceLine) Outstanding(totals LineTotals) decimal.Decimal {
	return l.OriginalAmount.Sub(totals.Consumed())
}

// CheckAllocation verifies that settled+allowance fits in what is outstanding
func (l *SourceLine) CheckAllocation(totals LineTotals, settled, allowance decimal.Decimal) error {
	requested := settled.Add(allowance)
	outstanding := l.Outstanding(totals)
	if requested.GreaterThan(outstanding) {
		return &OverSettlementError{
			Line:        l.Ref,
			Requested:   requested,
			Outstanding: outstanding,
		}
	}
	return nil
}

// Reprice changes the original amount. It may not drop below what has
// already been consumed.
func (l *SourceLine) Reprice(originalAmount decimal.Decimal, totals LineTotals) error {
	amount := originalAmount
	if !amount.IsPositive() {
		return shared.NewValidationError("original_amount", "original amount must be positive")
	}
	if err := checkMoney("original_amount", amount); err != nil {
		return err
	}
	if amount.LessThan(totals.Consumed()) {
		return shared.NewValidationError("original_amount", "original amount cannot drop below the settled total "+totals.Consumed().StringFixed(2))
	}
	if amount.Equal(l.OriginalAmount) {
		return nil
	}
	l.OriginalAmount = amount
	l.IncrementVersion()
	return nil
}

// MarkAllocated bumps the line version. Every commit or void touching the
// line does this so that racing writers conflict.
func (l *SourceLine) MarkAllocated() {
	l.IncrementVersion()
}
