package finance

import (
	"fmt"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TaxMode is the tax treatment applied to line subtotals
type TaxMode string

const (
	TaxModeExclusive TaxMode = "EXCLUSIVE" // subtotals exclude tax
	TaxModeInclusive TaxMode = "INCLUSIVE" // subtotals already include tax
	TaxModeNone      TaxMode = "NONE"
)

// IsValid checks if the mode is known
func (m TaxMode) IsValid() bool {
	switch m {
	case TaxModeExclusive, TaxModeInclusive, TaxModeNone:
		return true
	}
	return false
}

// TaxLine is one line item submitted for tax calculation
type TaxLine struct {
	Subtotal decimal.Decimal
	// Rate overrides the default rate when set. Percent, e.g. 13 for 13%.
	Rate *decimal.Decimal
}

// TaxLineResult is the per-line breakdown
type TaxLineResult struct {
	Subtotal decimal.Decimal
	Rate     decimal.Decimal
	Tax      decimal.Decimal
}

// TaxResult is the outcome of a calculation. Totals are whole units.
type TaxResult struct {
	Untaxed decimal.Decimal
	Tax     decimal.Decimal
	Lines   []TaxLineResult
}

var hundred = decimal.NewFromInt(100)

// TaxCalculator computes untaxed totals and tax for a set of lines. Tax is
// always rounded per line and then summed, never computed on the aggregate.
type TaxCalculator struct{}

// NewTaxCalculator creates a TaxCalculator
func NewTaxCalculator() TaxCalculator {
	return TaxCalculator{}
}

// Calculate applies mode to lines, using defaultRate where a line has no override
func (TaxCalculator) Calculate(lines []TaxLine, defaultRate decimal.Decimal, mode TaxMode) (TaxResult, error) {
	if !mode.IsValid() {
		return TaxResult{}, shared.NewValidationError("mode", fmt.Sprintf("unknown tax mode %q", mode))
	}
	if err := validateTaxRate("default_rate", defaultRate); err != nil {
		return TaxResult{}, err
	}

	result := TaxResult{
		Untaxed: decimal.Zero,
		Tax:     decimal.Zero,
		Lines:   make([]TaxLineResult, 0, len(lines)),
	}
	if len(lines) == 0 {
		return result, nil
	}

	gross := decimal.Zero
	for i, line := range lines {
		rate := defaultRate
		if line.Rate != nil {
			if err := validateTaxRate(fmt.Sprintf("lines[%d].rate", i), *line.Rate); err != nil {
				return TaxResult{}, err
			}
			rate = *line.Rate
		}

		lineTax := lineTax(line.Subtotal, rate, mode)
		gross = gross.Add(line.Subtotal)
		result.Tax = result.Tax.Add(lineTax)
		result.Lines = append(result.Lines, TaxLineResult{
			Subtotal: line.Subtotal,
			Rate:     rate,
			Tax:      lineTax,
		})
	}

	if mode == TaxModeInclusive {
		result.Untaxed = valueobject.RoundWhole(gross.Sub(result.Tax))
	} else {
		result.Untaxed = valueobject.RoundWhole(gross)
	}
	return result, nil
}

func lineTax(subtotal, rate decimal.Decimal, mode TaxMode) decimal.Decimal {
	r := rate.Div(hundred)
	switch mode {
	case TaxModeExclusive:
		return valueobject.RoundWhole(subtotal.Mul(r))
	case TaxModeInclusive:
		return valueobject.RoundWhole(subtotal.Div(decimal.NewFromInt(1).Add(r)).Mul(r))
	}
	return decimal.Zero
}

func validateTaxRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(valueobject.MaxTaxRate) {
		return shared.NewValidationError(field, "tax rate must be between 0 and 999.99")
	}
	if !rate.Equal(rate.Round(valueobject.TaxRateScale)) {
		return shared.NewValidationError(field, "tax rate allows at most two decimal places")
	}
	return nil
}
