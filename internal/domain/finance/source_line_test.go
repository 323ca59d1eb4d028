package finance

import (
	"errors"
	"testing"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceRefVariants(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		kind      SourceKind
		direction Direction
		sign      int64
	}{
		{SourceKindDeliveryLine, DirectionReceivable, 1},
		{SourceKindSalesReturnLine, DirectionReceivable, -1},
		{SourceKindReceivingLine, DirectionPayable, 1},
		{SourceKindPurchaseReturnLine, DirectionPayable, -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ref, err := NewSourceRef(tt.kind, id)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ref.Kind())
			assert.Equal(t, id, ref.LineID())
			assert.Equal(t, tt.direction, SourceDirection(ref))
			assert.True(t, SourceSign(ref).Equal(decimal.NewFromInt(tt.sign)))
		})
	}
}

func TestParseSourceRef_Errors(t *testing.T) {
	_, err := ParseSourceRef("INVOICE_LINE", uuid.NewString())
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = ParseSourceRef(string(SourceKindDeliveryLine), "not-a-uuid")
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewSourceRef(SourceKindDeliveryLine, uuid.Nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSortedSourceRefs(t *testing.T) {
	a := DeliveryLineRef{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002")}
	b := DeliveryLineRef{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001")}
	c := SalesReturnLineRef{ID: uuid.MustParse("00000000-0000-0000-0000-000000000000")}

	sorted := SortedSourceRefs([]SourceRef{c, a, b, a})
	require.Len(t, sorted, 3)
	assert.Equal(t, SourceRef(b), sorted[0])
	assert.Equal(t, SourceRef(a), sorted[1])
	assert.Equal(t, SourceRef(c), sorted[2])
}

func TestSourceLine_CheckAllocation(t *testing.T) {
	line, err := NewSourceLine(uuid.New(), DeliveryLineRef{ID: uuid.New()}, uuid.New(), dec("1000.00"))
	require.NoError(t, err)

	totals := LineTotals{Settled: dec("300"), Allowance: dec("100")}
	assert.True(t, line.Outstanding(totals).Equal(dec("600")))

	assert.NoError(t, line.CheckAllocation(totals, dec("500"), dec("100")))

	err = line.CheckAllocation(totals, dec("500"), dec("100.01"))
	var ose *OverSettlementError
	require.True(t, errors.As(err, &ose))
	assert.Equal(t, line.Ref, ose.Line)
	assert.True(t, ose.Outstanding.Equal(dec("600")))
	assert.True(t, errors.Is(err, shared.ErrOverSettlement))
}

func TestSourceLine_Reprice(t *testing.T) {
	line, err := NewSourceLine(uuid.New(), ReceivingLineRef{ID: uuid.New()}, uuid.New(), dec("100"))
	require.NoError(t, err)
	totals := LineTotals{Settled: dec("80"), Allowance: decimal.Zero}

	assert.True(t, errors.Is(line.Reprice(dec("79.99"), totals), shared.ErrValidation))
	require.NoError(t, line.Reprice(dec("120"), totals))
	assert.True(t, line.OriginalAmount.Equal(dec("120")))
	assert.Equal(t, 2, line.Version)

	require.NoError(t, line.Reprice(dec("120.00"), totals))
	assert.Equal(t, 2, line.Version, "same amount is a no-op")

	assert.True(t, errors.Is(line.Reprice(dec("120.004"), totals), shared.ErrValidation))
	assert.True(t, line.OriginalAmount.Equal(dec("120")))
}

func TestNewSourceLine_RejectsSubCentAmounts(t *testing.T) {
	_, err := NewSourceLine(uuid.New(), DeliveryLineRef{ID: uuid.New()}, uuid.New(), dec("99.999"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewSourceLine(uuid.New(), DeliveryLineRef{ID: uuid.New()}, uuid.New(), dec("0"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	line, err := NewSourceLine(uuid.New(), DeliveryLineRef{ID: uuid.New()}, uuid.New(), dec("99.90"))
	require.NoError(t, err)
	assert.True(t, line.OriginalAmount.Equal(dec("99.9")))
}
