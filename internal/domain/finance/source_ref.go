package finance

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction says whether a setoff collects money (receivable) or pays it out (payable)
type Direction string

const (
	DirectionReceivable Direction = "RECEIVABLE"
	DirectionPayable    Direction = "PAYABLE"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionReceivable || d == DirectionPayable
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// LedgerSign is +1 for money coming in and -1 for money going out
func (d Direction) LedgerSign() decimal.Decimal {
	if d == DirectionPayable {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// SourceKind tags the kind of document line a setoff allocates against
type SourceKind string

const (
	SourceKindDeliveryLine       SourceKind = "DELIVERY_LINE"
	SourceKindReceivingLine      SourceKind = "RECEIVING_LINE"
	SourceKindSalesReturnLine    SourceKind = "SALES_RETURN_LINE"
	SourceKindPurchaseReturnLine SourceKind = "PURCHASE_RETURN_LINE"
)

// SourceRef is a closed set of references to outstanding source lines.
// Only the types in this file implement it.
type SourceRef interface {
	Kind() SourceKind
	LineID() uuid.UUID
	sourceRef()
}

type (
	// DeliveryLineRef points at a sales delivery line
	DeliveryLineRef struct{ ID uuid.UUID }
	// ReceivingLineRef points at a purchase receiving line
	ReceivingLineRef struct{ ID uuid.UUID }
	// SalesReturnLineRef points at a sales return line
	SalesReturnLineRef struct{ ID uuid.UUID }
	// PurchaseReturnLineRef points at a purchase return line
	PurchaseReturnLineRef struct{ ID uuid.UUID }
)

func (r DeliveryLineRef) Kind() SourceKind       { return SourceKindDeliveryLine }
func (r ReceivingLineRef) Kind() SourceKind      { return SourceKindReceivingLine }
func (r SalesReturnLineRef) Kind() SourceKind    { return SourceKindSalesReturnLine }
func (r PurchaseReturnLineRef) Kind() SourceKind { return SourceKindPurchaseReturnLine }

func (r DeliveryLineRef) LineID() uuid.UUID       { return r.ID }
func (r ReceivingLineRef) LineID() uuid.UUID      { return r.ID }
func (r SalesReturnLineRef) LineID() uuid.UUID    { return r.ID }
func (r PurchaseReturnLineRef) LineID() uuid.UUID { return r.ID }

func (DeliveryLineRef) sourceRef()       {}
func (ReceivingLineRef) sourceRef()      {}
func (SalesReturnLineRef) sourceRef()    {}
func (PurchaseReturnLineRef) sourceRef() {}

// NewSourceRef builds the reference variant for kind
func NewSourceRef(kind SourceKind, id uuid.UUID) (SourceRef, error) {
	if id == uuid.Nil {
		return nil, shared.NewValidationError("source_id", "source line id is required")
	}
	switch kind {
	case SourceKindDeliveryLine:
		return DeliveryLineRef{ID: id}, nil
	case SourceKindReceivingLine:
		return ReceivingLineRef{ID: id}, nil
	case SourceKindSalesReturnLine:
		return SalesReturnLineRef{ID: id}, nil
	case SourceKindPurchaseReturnLine:
		return PurchaseReturnLineRef{ID: id}, nil
	}
	return nil, shared.NewValidationError("source_kind", fmt.Sprintf("unknown source kind %q", kind))
}

// ParseSourceRef parses the wire form of a reference
func ParseSourceRef(kind, id string) (SourceRef, error) {
	lineID, err := uuid.Parse(id)
	if err != nil {
		return nil, shared.NewValidationError("source_id", "source line id must be a UUID")
	}
	return NewSourceRef(SourceKind(kind), lineID)
}

// SourceDirection is the setoff direction a source line can be settled by
func SourceDirection(ref SourceRef) Direction {
	switch ref.(type) {
	case DeliveryLineRef, SalesReturnLineRef:
		return DirectionReceivable
	case ReceivingLineRef, PurchaseReturnLineRef:
		return DirectionPayable
	}
	panic(fmt.Sprintf("finance: unhandled source ref %T", ref))
}

// SourceSign is -1 for return lines, whose settlement flows the opposite way
// of the document's funds, and +1 otherwise.
func SourceSign(ref SourceRef) decimal.Decimal {
	switch ref.(type) {
	case DeliveryLineRef, ReceivingLineRef:
		return decimal.NewFromInt(1)
	case SalesReturnLineRef, PurchaseReturnLineRef:
		return decimal.NewFromInt(-1)
	}
	panic(fmt.Sprintf("finance: unhandled source ref %T", ref))
}

// SourceKey is a stable map key for a reference
func SourceKey(ref SourceRef) string {
	return string(ref.Kind()) + ":" + ref.LineID().String()
}

// CompareSourceRefs orders references by kind then id. Locks on source lines
// are always taken in this order.
func CompareSourceRefs(a, b SourceRef) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	return cmp.Compare(a.LineID().String(), b.LineID().String())
}

// SortedSourceRefs returns a sorted, de-duplicated copy of refs
func SortedSourceRefs(refs []SourceRef) []SourceRef {
	out := slices.Clone(refs)
	slices.SortFunc(out, CompareSourceRefs)
	return slices.CompactFunc(out, func(a, b SourceRef) bool {
		return CompareSourceRefs(a, b) == 0
	})
}
