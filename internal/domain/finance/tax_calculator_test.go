package finance

import (
	"errors"
	"testing"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) *decimal.Decimal {
	r := dec(s)
	return &r
}

func TestTaxCalculator_Exclusive_RoundsPerLine(t *testing.T) {
	calc := NewTaxCalculator()
	lines := []TaxLine{{Subtotal: dec("333")}, {Subtotal: dec("334")}}

	res, err := calc.Calculate(lines, dec("5"), TaxModeExclusive)
	require.NoError(t, err)

	assert.True(t, res.Untaxed.Equal(dec("667")))
	assert.True(t, res.Tax.Equal(dec("34")), "got %s", res.Tax)
	aggregate := dec("667").Mul(dec("0.05")).Round(0)
	assert.False(t, res.Tax.Equal(aggregate), "per-line tax must differ from aggregate rounding here")
	require.Len(t, res.Lines, 2)
	assert.True(t, res.Lines[0].Tax.Equal(dec("17")))
	assert.True(t, res.Lines[1].Tax.Equal(dec("17")))
}

func TestTaxCalculator_Exclusive_RateOverride(t *testing.T) {
	calc := NewTaxCalculator()
	lines := []TaxLine{
		{Subtotal: dec("100")},
		{Subtotal: dec("100"), Rate: rate("13")},
		{Subtotal: dec("100"), Rate: rate("0")},
	}

	res, err := calc.Calculate(lines, dec("6"), TaxModeExclusive)
	require.NoError(t, err)
	assert.True(t, res.Tax.Equal(dec("19")))
	assert.True(t, res.Lines[1].Rate.Equal(dec("13")))
}

func TestTaxCalculator_Inclusive(t *testing.T) {
	calc := NewTaxCalculator()
	// 113 / 1.13 * 0.13 = 13 ; 100 / 1.13 * 0.13 = 11.504... -> 12
	lines := []TaxLine{{Subtotal: dec("113")}, {Subtotal: dec("100")}}

	res, err := calc.Calculate(lines, dec("13"), TaxModeInclusive)
	require.NoError(t, err)
	assert.True(t, res.Tax.Equal(dec("25")), "got %s", res.Tax)
	assert.True(t, res.Untaxed.Equal(dec("188")), "got %s", res.Untaxed)
}

func TestTaxCalculator_None(t *testing.T) {
	calc := NewTaxCalculator()
	res, err := calc.Calculate([]TaxLine{{Subtotal: dec("10.4")}, {Subtotal: dec("10.2")}}, dec("13"), TaxModeNone)
	require.NoError(t, err)
	assert.True(t, res.Tax.IsZero())
	assert.True(t, res.Untaxed.Equal(dec("21")))
}

func TestTaxCalculator_HalfAwayFromZero(t *testing.T) {
	calc := NewTaxCalculator()

	res, err := calc.Calculate([]TaxLine{{Subtotal: dec("10")}}, dec("5"), TaxModeExclusive)
	require.NoError(t, err)
	assert.True(t, res.Tax.Equal(dec("1")), "0.5 rounds up")

	res, err = calc.Calculate([]TaxLine{{Subtotal: dec("-10")}}, dec("5"), TaxModeExclusive)
	require.NoError(t, err)
	assert.True(t, res.Tax.Equal(dec("-1")), "-0.5 rounds away from zero")
}

func TestTaxCalculator_EmptyInput(t *testing.T) {
	for _, mode := range []TaxMode{TaxModeExclusive, TaxModeInclusive, TaxModeNone} {
		res, err := NewTaxCalculator().Calculate(nil, dec("13"), mode)
		require.NoError(t, err)
		assert.True(t, res.Untaxed.IsZero())
		assert.True(t, res.Tax.IsZero())
	}
}

func TestTaxCalculator_Validation(t *testing.T) {
	calc := NewTaxCalculator()

	t.Run("unknown mode", func(t *testing.T) {
		_, err := calc.Calculate(nil, dec("13"), TaxMode("VAT"))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("negative default rate", func(t *testing.T) {
		_, err := calc.Calculate(nil, dec("-1"), TaxModeExclusive)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("override out of range", func(t *testing.T) {
		_, err := calc.Calculate([]TaxLine{{Subtotal: dec("1"), Rate: rate("1000")}}, dec("13"), TaxModeExclusive)
		var ve *shared.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "lines[0].rate", ve.Field)
	})

	t.Run("rate with three decimals", func(t *testing.T) {
		_, err := calc.Calculate(nil, dec("13.125"), TaxModeExclusive)
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}
