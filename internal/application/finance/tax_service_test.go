package finance_test

import (
	"context"
	"testing"

	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxService_Calculate(t *testing.T) {
	svc := appfinance.NewTaxService()
	rate := decimal.NewFromInt(6)

	resp, err := svc.Calculate(context.Background(), appfinance.CalculateTaxRequest{
		Lines: []appfinance.TaxLineRequest{
			{Subtotal: decimal.NewFromInt(100)},
			{Subtotal: decimal.NewFromInt(200), Rate: &rate},
		},
		DefaultRate: decimal.NewFromInt(13),
		Mode:        "EXCLUSIVE",
	})
	require.NoError(t, err)

	assertDecimal(t, "300", resp.Untaxed)
	assertDecimal(t, "25", resp.Tax)
	assertDecimal(t, "325", resp.Total)
	require.Len(t, resp.Lines, 2)
	assertDecimal(t, "13", resp.Lines[0].Tax)
	assertDecimal(t, "6", resp.Lines[1].Rate)
	assertDecimal(t, "12", resp.Lines[1].Tax)
}

func TestTaxService_Inclusive(t *testing.T) {
	svc := appfinance.NewTaxService()

	resp, err := svc.Calculate(context.Background(), appfinance.CalculateTaxRequest{
		Lines:       []appfinance.TaxLineRequest{{Subtotal: decimal.NewFromInt(113)}},
		DefaultRate: decimal.NewFromInt(13),
		Mode:        "INCLUSIVE",
	})
	require.NoError(t, err)
	assertDecimal(t, "100", resp.Untaxed)
	assertDecimal(t, "13", resp.Tax)
	assertDecimal(t, "113", resp.Total)
}

func TestTaxService_RejectsUnknownMode(t *testing.T) {
	svc := appfinance.NewTaxService()
	_, err := svc.Calculate(context.Background(), appfinance.CalculateTaxRequest{
		DefaultRate: decimal.NewFromInt(13),
		Mode:        "GROSS",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
