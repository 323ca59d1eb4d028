package handler

import (
	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// TaxHandler exposes the stateless tax calculator
type TaxHandler struct {
	BaseHandler
	tax *appfinance.TaxService
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(tax *appfinance.TaxService) *TaxHandler {
	return &TaxHandler{tax: tax}
}

// Calculate handles POST /tax/calculate
func (h *TaxHandler) Calculate(c *gin.Context) {
	var req appfinance.CalculateTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.tax.Calculate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
