package handler

import (
	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/finance"
	"github.com/gin-gonic/gin"
)

// SourceLineHandler serves the source line registry and outstanding queries
type SourceLineHandler struct {
	BaseHandler
	lines  *appfinance.SourceLineService
	setoff *appfinance.SetoffService
}

// NewSourceLineHandler creates a new SourceLineHandler
func NewSourceLineHandler(lines *appfinance.SourceLineService, setoff *appfinance.SetoffService) *SourceLineHandler {
	return &SourceLineHandler{lines: lines, setoff: setoff}
}

// Register handles POST /source-lines. Re-registering the same line is
// idempotent; a higher amount reprices it.
func (h *SourceLineHandler) Register(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req appfinance.RegisterSourceLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	line, err := h.lines.RegisterSourceLine(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, line)
}

// Outstanding handles GET /source-lines/:kind/:id/outstanding
func (h *SourceLineHandler) Outstanding(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	ref, err := finance.ParseSourceRef(c.Param("kind"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	view, err := h.setoff.GetOutstandingBalance(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ListOutstanding handles GET /source-lines/outstanding
func (h *SourceLineHandler) ListOutstanding(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter appfinance.OutstandingListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.lines.ListOutstanding(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
