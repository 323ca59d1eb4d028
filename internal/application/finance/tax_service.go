package finance

import (
	"context"

	"github.com/erp/setoff/internal/domain/finance"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
)

// TaxService exposes the tax calculator. It touches no storage.
type TaxService struct {
	calculator finance.TaxCalculator
}

// NewTaxService creates a new TaxService
func NewTaxService() *TaxService {
	return &TaxService{calculator: finance.NewTaxCalculator()}
}

// Calculate computes the untaxed total and tax of the lines
func (s *TaxService) Calculate(ctx context.Context, req CalculateTaxRequest) (*CalculateTaxResponse, error) {
	_, span := telemetry.StartServiceSpan(ctx, "tax", "calculate", "tax.mode", req.Mode, "tax.lines", len(req.Lines))
	defer span.End()

	lines := make([]finance.TaxLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, finance.TaxLine{Subtotal: l.Subtotal, Rate: l.Rate})
	}
	result, err := s.calculator.Calculate(lines, req.DefaultRate, finance.TaxMode(req.Mode))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &CalculateTaxResponse{
		Mode:    req.Mode,
		Untaxed: result.Untaxed,
		Tax:     result.Tax,
		Total:   result.Untaxed.Add(result.Tax),
		Lines:   make([]TaxLineResponse, 0, len(result.Lines)),
	}
	for _, l := range result.Lines {
		resp.Lines = append(resp.Lines, TaxLineResponse{Subtotal: l.Subtotal, Rate: l.Rate, Tax: l.Tax})
	}
	return resp, nil
}
