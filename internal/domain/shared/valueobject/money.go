// Package valueobject holds the monetary primitives shared by the setoff and
// ledger aggregates.
//
// Two rounding domains exist and must not be mixed: currency amounts are kept
// at two decimal places, while tax calculation totals are rounded to whole
// units. Both round half away from zero.
package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Persisted scales, matching the DECIMAL column definitions.
const (
	CurrencyScale     int32 = 2 // DECIMAL(18,2)
	UnitCostScale     int32 = 4 // DECIMAL(18,4)
	ExchangeRateScale int32 = 6 // DECIMAL(18,6)
	TaxRateScale      int32 = 2 // DECIMAL(5,2)
)

// MaxTaxRate is the largest value a DECIMAL(5,2) tax rate column can hold
var MaxTaxRate = decimal.RequireFromString("999.99")

// RoundCurrency rounds a currency amount to two decimal places
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// RoundWhole rounds to zero decimal places. Used only by tax calculation.
func RoundWhole(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// RoundExchangeRate rounds an exchange rate to its persisted scale
func RoundExchangeRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(ExchangeRateScale)
}

// Sum adds the given amounts without rounding
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Currency is an ISO 4217 currency code
type Currency string

// ParseCurrency validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("invalid currency code %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

func (c Currency) String() string { return string(c) }

// ForeignAmount is an amount in a non-functional currency together with the
// rate that converts it into the functional currency.
type ForeignAmount struct {
	Currency     Currency
	Amount       decimal.Decimal
	ExchangeRate decimal.Decimal
}

// NewForeignAmount validates the currency and rate
func NewForeignAmount(code string, amount, rate decimal.Decimal) (ForeignAmount, error) {
	cur, err := ParseCurrency(code)
	if err != nil {
		return ForeignAmount{}, err
	}
	if !rate.IsPositive() {
		return ForeignAmount{}, fmt.Errorf("exchange rate must be positive")
	}
	return ForeignAmount{
		Currency:     cur,
		Amount:       RoundCurrency(amount),
		ExchangeRate: RoundExchangeRate(rate),
	}, nil
}

// Functional converts the amount into the functional currency
func (f ForeignAmount) Functional() decimal.Decimal {
	return RoundCurrency(f.Amount.Mul(f.ExchangeRate))
}

// Negate returns the same foreign amount with the opposite sign
func (f ForeignAmount) Negate() ForeignAmount {
	f.Amount = f.Amount.Neg()
	return f
}
