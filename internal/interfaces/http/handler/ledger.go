package handler

import (
	appfinance "github.com/erp/setoff/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// LedgerHandler serves ledger postings, balances and statements
type LedgerHandler struct {
	BaseHandler
	ledger     *appfinance.LedgerService
	statements *appfinance.StatementService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger *appfinance.LedgerService, statements *appfinance.StatementService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, statements: statements}
}

// Record handles POST /ledger/entries
func (h *LedgerHandler) Record(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req appfinance.RecordEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	entry, err := h.ledger.Record(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// Reverse handles POST /ledger/entries/:id/reverse
func (h *LedgerHandler) Reverse(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	pair, err := h.ledger.Reverse(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, pair)
}

// GetReversal handles GET /ledger/entries/:id/reversal
func (h *LedgerHandler) GetReversal(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	pair, err := h.ledger.GetReversalPair(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pair)
}

// Balance handles GET /ledger/accounts/:kind/:id/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	account, ok := h.accountParam(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), tenantID, account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// Entries handles GET /ledger/accounts/:kind/:id/entries
func (h *LedgerHandler) Entries(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	account, ok := h.accountParam(c)
	if !ok {
		return
	}
	var filter appfinance.EntryListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.ledger.ListAccountEntries(c.Request.Context(), tenantID, account, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Verify handles GET /ledger/accounts/:kind/:id/verify
func (h *LedgerHandler) Verify(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	account, ok := h.accountParam(c)
	if !ok {
		return
	}

	check, err := h.ledger.VerifyAccountChain(c.Request.Context(), tenantID, account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// ExportStatement handles POST /ledger/accounts/:kind/:id/statements
func (h *LedgerHandler) ExportStatement(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	account, ok := h.accountParam(c)
	if !ok {
		return
	}
	var req appfinance.ExportStatementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	export, err := h.statements.ExportStatement(c.Request.Context(), tenantID, account, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, export)
}
