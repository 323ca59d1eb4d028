package handler

import (
	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// PrepaymentHandler serves prepayment credit and its usages
type PrepaymentHandler struct {
	BaseHandler
	prepayments *appfinance.PrepaymentService
}

// NewPrepaymentHandler creates a new PrepaymentHandler
func NewPrepaymentHandler(prepayments *appfinance.PrepaymentService) *PrepaymentHandler {
	return &PrepaymentHandler{prepayments: prepayments}
}

// Create handles POST /prepayments
func (h *PrepaymentHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req appfinance.CreatePrepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	prep, err := h.prepayments.CreatePrepayment(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, prep)
}

// List handles GET /prepayments?party_id=&only_available=
func (h *PrepaymentHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter appfinance.PrepaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	items, err := h.prepayments.ListPrepayments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// Get handles GET /prepayments/:id
func (h *PrepaymentHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	prep, err := h.prepayments.GetPrepayment(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, prep)
}

// Verify handles GET /prepayments/:id/verify
func (h *PrepaymentHandler) Verify(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	check, err := h.prepayments.VerifyPrepayment(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// ApplyUsage handles POST /prepayments/:id/usages
func (h *PrepaymentHandler) ApplyUsage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfinance.ApplyUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	usage, err := h.prepayments.ApplyUsage(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, usage)
}

// ReverseUsage handles POST /prepayment-usages/:id/reverse
func (h *PrepaymentHandler) ReverseUsage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	usage, err := h.prepayments.ReverseUsage(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, usage)
}
