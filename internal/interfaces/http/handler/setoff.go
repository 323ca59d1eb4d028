package handler

import (
	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// SetoffHandler serves setoff documents
type SetoffHandler struct {
	BaseHandler
	setoff *appfinance.SetoffService
}

// NewSetoffHandler creates a new SetoffHandler
func NewSetoffHandler(setoff *appfinance.SetoffService) *SetoffHandler {
	return &SetoffHandler{setoff: setoff}
}

// Create handles POST /setoff-documents
func (h *SetoffHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req appfinance.CreateSetoffDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	doc, err := h.setoff.CreateSetoffDocument(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// List handles GET /setoff-documents
func (h *SetoffHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter appfinance.SetoffDocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.setoff.ListSetoffDocuments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get handles GET /setoff-documents/:id
func (h *SetoffHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.setoff.GetSetoffDocument(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Void handles POST /setoff-documents/:id/void. The body is optional.
func (h *SetoffHandler) Void(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req appfinance.VoidSetoffDocumentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	doc, err := h.setoff.VoidSetoffDocument(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}
